package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/idgen"
	"github.com/mcoot/assassingame/internal/services/membership"
	"github.com/mcoot/assassingame/internal/services/player"
	"github.com/mcoot/assassingame/internal/services/ring"
	"github.com/mcoot/assassingame/internal/storage"
)

const (
	// DefaultGameDuration is how long a game runs once started
	DefaultGameDuration = 72 * time.Hour

	// DefaultMaxCodeAttempts bounds game code regeneration on collision
	DefaultMaxCodeAttempts = 10

	// MaxGameNameLength bounds stored game names
	MaxGameNameLength = 100
)

// Config holds lifecycle policy
type Config struct {
	GameDuration    time.Duration
	MaxCodeAttempts int
}

// DefaultConfig returns the standard policy
func DefaultConfig() Config {
	return Config{
		GameDuration:    DefaultGameDuration,
		MaxCodeAttempts: DefaultMaxCodeAttempts,
	}
}

// Controller runs the game lifecycle state machine.
// Each operation is one transaction; events are published after commit.
type Controller struct {
	storage   storage.Storage
	players   *player.Registry
	ledger    *membership.Ledger
	ring      *ring.Ring
	generator *idgen.Generator
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	config    Config
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	players *player.Registry,
	ledger *membership.Ledger,
	ring *ring.Ring,
	generator *idgen.Generator,
	publisher events.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
	config Config,
) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if config.GameDuration <= 0 {
		config.GameDuration = DefaultGameDuration
	}
	if config.MaxCodeAttempts <= 0 {
		config.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	return &Controller{
		storage:   storage,
		players:   players,
		ledger:    ledger,
		ring:      ring,
		generator: generator,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With(slog.String("component", "game")),
		tracer:    otel.Tracer("github.com/mcoot/assassingame/internal/services/game"),
		config:    config,
	}
}

// pending collects events raised inside a transaction
type pending []model.Event

func (p *pending) add(now time.Time, code model.GameCode, typ model.EventType, payload any) {
	*p = append(*p, model.Event{Type: typ, GameCode: code, Timestamp: now, Payload: payload})
}

func (c *Controller) publish(ctx context.Context, evts pending) {
	for _, e := range evts {
		c.publisher.Publish(ctx, e)
	}
}

// audit re-checks the ring after a repair when debug logging is on.
// A failure here is a bug in ring repair, not a caller error.
func (c *Controller) audit(ctx context.Context, code model.GameCode) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	err := c.Validate(ctx, code)
	if err == nil || errors.Is(err, model.ErrGameFinished) || errors.Is(err, model.ErrGameNotStarted) {
		return
	}
	c.logger.Error("ring invalid after repair",
		slog.String("game_code", string(code)),
		slog.String("error", err.Error()))
}

// start opens a span for an operation
func (c *Controller) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "game."+op, trace.WithAttributes(attrs...))
}

// done records the outcome of an operation on its span and log.
// Rule violations are expected and logged at debug; anything else is an error.
func (c *Controller) done(span trace.Span, op string, err error, attrs ...any) error {
	defer span.End()
	if err == nil {
		return nil
	}
	code := model.Code(err)
	span.SetAttributes(attribute.String("error.code", string(code)))
	attrs = append(attrs, slog.String("op", op), slog.String("code", string(code)))
	switch code {
	case model.CodeDatabaseError, model.CodeUnknown:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("game operation failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		c.logger.Debug("game operation rejected", attrs...)
	}
	return err
}

// CreateGame creates a game owned by the caller, retrying on code collision
func (c *Controller) CreateGame(ctx context.Context, identity model.Identity, name string) (_ *model.Game, err error) {
	ctx, span := c.start(ctx, "CreateGame")
	defer func() { err = c.done(span, "create_game", err, slog.String("subject", identity.Subject)) }()

	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > MaxGameNameLength {
		name = string(runes[:MaxGameNameLength])
	}

	for attempt := 1; attempt <= c.config.MaxCodeAttempts; attempt++ {
		code := c.generator.GameCode()
		var (
			game *model.Game
			evts pending
		)
		err := c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			evts = nil
			owner, err := c.players.Resolve(ctx, tx, identity)
			if err != nil {
				return err
			}
			if err := c.ledger.EnsureAvailable(ctx, tx, owner.ID, 0); err != nil {
				return err
			}

			now := c.clock.Now()
			game = &model.Game{
				Name:      name,
				Owner:     owner.ID,
				Code:      code,
				Status:    model.GameStatusWaiting,
				CreatedAt: now,
			}
			if err := tx.CreateGame(ctx, game); err != nil {
				return err
			}
			m, err := c.ledger.Join(ctx, tx, game, owner.ID)
			if err != nil {
				return err
			}
			evts.add(now, game.Code, model.EventPlayerJoined, model.PlayerJoinedPayload{Codename: m.Codename})
			return nil
		})
		if errors.Is(err, storage.ErrGameCodeTaken) {
			c.logger.Debug("game code collision, regenerating", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		span.SetAttributes(attribute.String("game.code", string(game.Code)))
		c.logger.Info("game created",
			slog.String("game_code", string(game.Code)),
			slog.Int64("owner_id", int64(game.Owner)),
			slog.Int("attempts", attempt),
		)
		c.publish(ctx, evts)
		return game, nil
	}
	return nil, &model.StoreError{Op: "create game", Err: fmt.Errorf("no free game code after %d attempts", c.config.MaxCodeAttempts)}
}

// JoinGame adds the caller to a waiting game
func (c *Controller) JoinGame(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.Membership, err error) {
	ctx, span := c.start(ctx, "JoinGame", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "join_game", err, slog.String("game_code", string(code))) }()

	var (
		m    *model.Membership
		evts pending
	)
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		game, err := tx.LockGameByCode(ctx, code)
		if err != nil {
			return err
		}
		m, err = c.ledger.Join(ctx, tx, game, p.ID)
		if err != nil {
			return err
		}
		evts.add(c.clock.Now(), game.Code, model.EventPlayerJoined, model.PlayerJoinedPayload{Codename: m.Codename})
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("player joined game",
		slog.String("game_code", string(code)),
		slog.Int64("player_id", int64(m.PlayerID)),
	)
	c.publish(ctx, evts)
	return m, nil
}

// StartGame moves a waiting game to ACTIVE and builds the ring
func (c *Controller) StartGame(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.Game, err error) {
	ctx, span := c.start(ctx, "StartGame", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "start_game", err, slog.String("game_code", string(code))) }()

	var (
		game *model.Game
		evts pending
	)
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		game, err = tx.LockGameByCode(ctx, code)
		if err != nil {
			return err
		}
		if !game.IsOwner(p.ID) {
			return model.ErrNotGameOwner
		}
		switch game.Status {
		case model.GameStatusWaiting:
		case model.GameStatusFinished:
			return model.ErrGameFinished
		default:
			return model.ErrGameAlreadyStarted
		}

		alive, err := c.ledger.AliveMembers(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		if len(alive) < 2 {
			return model.ErrNotEnoughPlayers
		}

		now := c.clock.Now()
		endsAt := now.Add(c.config.GameDuration)
		game.Status = model.GameStatusActive
		game.StartedAt = &now
		game.EndsAt = &endsAt
		if err := tx.UpdateGame(ctx, game); err != nil {
			return err
		}
		if _, err := c.ring.Build(ctx, tx, game.ID, alive); err != nil {
			return err
		}
		evts.add(now, game.Code, model.EventGameStarted, model.GameStartedPayload{Players: len(alive), EndsAt: endsAt})
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("game started",
		slog.String("game_code", string(code)),
		slog.Time("ends_at", *game.EndsAt),
	)
	c.publish(ctx, evts)
	return game, nil
}

// requireActive maps non-active statuses to the error for ring operations
func requireActive(game *model.Game) error {
	switch game.Status {
	case model.GameStatusActive:
		return nil
	case model.GameStatusFinished:
		return model.ErrGameFinished
	default:
		return model.ErrGameNotStarted
	}
}

// KillPlayer records that the caller eliminated their current target
func (c *Controller) KillPlayer(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.KillResult, err error) {
	ctx, span := c.start(ctx, "KillPlayer", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "kill_player", err, slog.String("game_code", string(code))) }()

	var (
		result  *model.KillResult
		outcome *ring.Outcome
		evts    pending
	)
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		// Held until commit so stop and expiry cannot finish the game under us
		game, err := tx.ShareGameByCode(ctx, code)
		if err != nil {
			return err
		}
		m, err := c.ledger.Get(ctx, tx, game.ID, p.ID)
		switch {
		case errors.Is(err, model.ErrNotInGame):
			m = nil
		case err != nil:
			return err
		}
		if m != nil && game.Status != model.GameStatusActive && game.Status != model.GameStatusFinished {
			return model.ErrGameNotStarted
		}
		// Anyone without an outgoing edge has nobody to kill, member or not
		if _, err := c.ring.CurrentTargetOf(ctx, tx, game.ID, p.ID); err != nil {
			return err
		}
		if err := requireActive(game); err != nil {
			return err
		}
		if m == nil || !m.IsAlive() {
			return fmt.Errorf("%w: edge leaves player %d who is not alive", model.ErrRingCorrupted, p.ID)
		}

		outcome, err = c.ring.ResolveKill(ctx, tx, game.ID, p.ID)
		if err != nil {
			return err
		}

		now := c.clock.Now()
		victim, err := c.ledger.Get(ctx, tx, game.ID, outcome.Removed)
		if err != nil {
			return err
		}
		alive, err := c.ledger.AliveCount(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		evts.add(now, game.Code, model.EventPlayerEliminated, model.PlayerEliminatedPayload{Codename: victim.Codename, Alive: alive})

		result = &model.KillResult{VictimCodename: victim.Codename}
		if outcome.Collapsed {
			if err := c.finish(ctx, tx, game, &p.ID); err != nil {
				return err
			}
			result.GameOver = true
			evts.add(now, game.Code, model.EventGameFinished, model.GameFinishedPayload{Winner: m.Codename, Reason: model.FinishReasonLastStanding})
			return nil
		}
		result.Target, err = c.targetInfo(ctx, tx, outcome.NextTarget)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("kill confirmed",
		slog.String("game_code", string(code)),
		slog.Int64("assassin_id", int64(outcome.Assassin)),
		slog.Int64("victim_id", int64(outcome.Removed)),
		slog.Bool("game_over", outcome.Collapsed),
	)
	c.publish(ctx, evts)
	if !outcome.Collapsed {
		c.audit(ctx, code)
	}
	return result, nil
}

// LeaveGame removes the caller from a game. In an active game the ring is
// repaired around them. The owner leaving a waiting game cancels it.
func (c *Controller) LeaveGame(ctx context.Context, identity model.Identity, code model.GameCode) (err error) {
	ctx, span := c.start(ctx, "LeaveGame", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "leave_game", err, slog.String("game_code", string(code))) }()

	var evts pending
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		evts = nil
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		game, err := tx.GetGameByCode(ctx, code)
		if err != nil {
			return err
		}
		if game.Status == model.GameStatusWaiting {
			// Serialize with StartGame so nobody leaves a ring being built
			game, err = tx.LockGameByCode(ctx, code)
		} else {
			game, err = tx.ShareGameByCode(ctx, code)
		}
		if err != nil {
			return err
		}

		m, err := c.ledger.Get(ctx, tx, game.ID, p.ID)
		if err != nil {
			return err
		}
		if game.Status == model.GameStatusFinished {
			return model.ErrGameFinished
		}
		if !m.IsAlive() {
			return model.ErrNotInGame
		}

		now := c.clock.Now()
		var outcome *ring.Outcome
		if game.Status == model.GameStatusActive {
			if outcome, err = c.ring.ResolveLeave(ctx, tx, game.ID, p.ID); err != nil {
				return err
			}
		}
		if _, err := c.ledger.Leave(ctx, tx, game, p.ID); err != nil {
			return err
		}
		evts.add(now, game.Code, model.EventPlayerLeft, model.PlayerLeftPayload{Codename: m.Codename})

		switch {
		case outcome != nil && outcome.Collapsed:
			winner, err := c.ledger.Get(ctx, tx, game.ID, outcome.Assassin)
			if err != nil {
				return err
			}
			if err := c.finish(ctx, tx, game, &outcome.Assassin); err != nil {
				return err
			}
			evts.add(now, game.Code, model.EventGameFinished, model.GameFinishedPayload{Winner: winner.Codename, Reason: model.FinishReasonLastStanding})
		case game.Status == model.GameStatusWaiting && game.IsOwner(p.ID):
			if err := c.finish(ctx, tx, game, nil); err != nil {
				return err
			}
			evts.add(now, game.Code, model.EventGameFinished, model.GameFinishedPayload{Reason: model.FinishReasonCancelled})
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("player left game", slog.String("game_code", string(code)))
	c.publish(ctx, evts)
	c.audit(ctx, code)
	return nil
}

// StopGame lets the owner finish an active game once its end time has passed
func (c *Controller) StopGame(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.Game, err error) {
	ctx, span := c.start(ctx, "StopGame", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "stop_game", err, slog.String("game_code", string(code))) }()

	var game *model.Game
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		game, err = tx.LockGameByCode(ctx, code)
		if err != nil {
			return err
		}
		if !game.IsOwner(p.ID) {
			return model.ErrNotGameOwner
		}
		if err := requireActive(game); err != nil {
			return err
		}
		if !game.HasEnded(c.clock.Now()) {
			return model.ErrGameNotOver
		}
		return c.finish(ctx, tx, game, nil)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("game stopped", slog.String("game_code", string(code)))
	c.publish(ctx, pending{{
		Type:      model.EventGameFinished,
		GameCode:  game.Code,
		Timestamp: c.clock.Now(),
		Payload:   model.GameFinishedPayload{Reason: model.FinishReasonStopped},
	}})
	return game, nil
}

// ExpireGames finishes every active game whose end time has passed and
// returns how many were finished. Each game is finished in its own transaction.
func (c *Controller) ExpireGames(ctx context.Context) (_ int, err error) {
	ctx, span := c.start(ctx, "ExpireGames")
	defer func() { err = c.done(span, "expire_games", err) }()

	var expired []model.Game
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		expired, err = tx.ListExpiredGames(ctx, c.clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}

	finished := 0
	for _, candidate := range expired {
		expiredNow := false
		err := c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			game, err := tx.LockGameByCode(ctx, candidate.Code)
			if err != nil {
				return err
			}
			// A kill may have finished it since it was listed
			if game.Status != model.GameStatusActive || !game.HasEnded(c.clock.Now()) {
				return nil
			}
			expiredNow = true
			return c.finish(ctx, tx, game, nil)
		})
		if err != nil {
			return finished, err
		}
		if !expiredNow {
			continue
		}
		finished++
		c.logger.Info("game expired", slog.String("game_code", string(candidate.Code)))
		c.publish(ctx, pending{{
			Type:      model.EventGameFinished,
			GameCode:  candidate.Code,
			Timestamp: c.clock.Now(),
			Payload:   model.GameFinishedPayload{Reason: model.FinishReasonExpired},
		}})
	}
	return finished, nil
}

// finish closes any remaining edges and marks the game FINISHED at now
func (c *Controller) finish(ctx context.Context, tx storage.Tx, game *model.Game, winner *model.PlayerID) error {
	if _, err := c.ring.CloseAll(ctx, tx, game.ID); err != nil {
		return err
	}
	now := c.clock.Now()
	game.Status = model.GameStatusFinished
	game.EndsAt = &now
	game.Winner = winner
	return tx.UpdateGame(ctx, game)
}

func (c *Controller) targetInfo(ctx context.Context, tx storage.Tx, id model.PlayerID) (*model.TargetInfo, error) {
	target, err := c.players.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return &model.TargetInfo{Nickname: target.Nickname, Picture: target.Picture}, nil
}
