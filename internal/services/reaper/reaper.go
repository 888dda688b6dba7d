// Package reaper periodically finishes games whose end time has passed.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultInterval is how often expired games are swept
const DefaultInterval = time.Minute

// Expirer finishes expired games
type Expirer interface {
	ExpireGames(ctx context.Context) (int, error)
}

// RoomSweeper drops event rooms nobody is listening on
type RoomSweeper interface {
	SweepIdle() int
}

// Reaper runs the expiry sweep on a schedule
type Reaper struct {
	expirer  Expirer
	cleaner  RoomSweeper
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Reaper. cleaner may be nil.
func New(expirer Expirer, cleaner RoomSweeper, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		expirer:  expirer,
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Sweep runs a single pass
func (r *Reaper) Sweep(ctx context.Context) {
	finished, err := r.expirer.ExpireGames(ctx)
	if err != nil {
		r.logger.Error("expiry sweep failed",
			slog.Int("finished", finished),
			slog.String("error", err.Error()))
	} else if finished > 0 {
		r.logger.Info("expired games finished", slog.Int("finished", finished))
	}

	if r.cleaner != nil {
		r.cleaner.SweepIdle()
	}
}

// Run schedules the sweep and blocks until ctx is cancelled
func (r *Reaper) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.Sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Join(fmt.Errorf("schedule expiry sweep: %w", err), scheduler.Shutdown())
	}

	scheduler.Start()
	r.logger.Info("reaper started", slog.Duration("interval", r.interval))

	<-ctx.Done()
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	r.logger.Info("reaper stopped")
	return nil
}
