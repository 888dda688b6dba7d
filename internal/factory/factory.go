package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/dependencies/random"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/services/auth"
	"github.com/mcoot/assassingame/internal/services/game"
	"github.com/mcoot/assassingame/internal/services/idgen"
	"github.com/mcoot/assassingame/internal/services/membership"
	"github.com/mcoot/assassingame/internal/services/player"
	"github.com/mcoot/assassingame/internal/services/reaper"
	"github.com/mcoot/assassingame/internal/services/ring"
	"github.com/mcoot/assassingame/internal/storage"
	"github.com/mcoot/assassingame/internal/storage/memory"
	"github.com/mcoot/assassingame/internal/storage/postgres"
	"github.com/mcoot/assassingame/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// Events transport constants
const (
	EventsNone   = "none"
	EventsMemory = "memory"
	EventsRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService    *auth.Service
	Players        *player.Registry
	GameController *game.Controller
	Reaper         *reaper.Reaper

	// Events. Rooms is nil when events are disabled; Relay is only set for redis.
	Rooms     *events.Rooms
	Publisher events.Publisher
	Relay     *events.Relay

	redis *redis.Client
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "sqlite" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// Postgres holds connection settings (DSN required if StorageType is "postgres")
	Postgres postgres.Config
	// EventsTransport selects live event delivery ("none", "memory" or "redis")
	// If empty, defaults to "memory"
	EventsTransport string
	// Redis holds connection settings (required if EventsTransport is "redis")
	Redis events.RedisConfig
	// Auth holds token verification settings
	Auth auth.Config
	// Game holds lifecycle policy; zero fields take defaults
	Game game.Config
	// ReaperInterval is how often expired games are swept
	ReaperInterval time.Duration
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	authService, err := auth.New(clk, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		rooms     *events.Rooms
		publisher events.Publisher
		relay     *events.Relay
		client    *redis.Client
	)
	transport := cfg.EventsTransport
	if transport == "" {
		transport = EventsMemory
	}
	switch transport {
	case EventsNone:
		publisher = events.Nop{}
	case EventsMemory:
		rooms = events.NewRooms(logger)
		publisher = rooms
	case EventsRedis:
		client, err = events.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		rooms = events.NewRooms(logger)
		publisher = events.NewRedisPublisher(client, cfg.Redis.ChannelPrefix, logger)
		relay = events.NewRelay(client, cfg.Redis.ChannelPrefix, rooms, logger)
	default:
		_ = store.Close()
		return nil, fmt.Errorf("invalid EventsTransport %q: must be 'none', 'memory' or 'redis'", transport)
	}

	app := newWithDependencies(store, clk, rnd, authService, rooms, publisher, cfg, logger)
	app.Relay = relay
	app.redis = client
	return app, nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(ctx, cfg.SQLitePath)
	case StorageTypePostgres:
		if cfg.Postgres.DSN == "" {
			return nil, errors.New("postgres DSN required when StorageType is postgres")
		}
		return postgres.Open(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'sqlite' or 'postgres'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authService *auth.Service,
	rooms *events.Rooms,
	publisher events.Publisher,
	cfg Config,
	logger *slog.Logger,
) *App {
	generator := idgen.New(rnd)
	players := player.New(store, clk, logger)
	ledger := membership.New(generator, clk, logger)
	gameRing := ring.New(ledger, clk, rnd, logger)
	gameController := game.NewController(store, players, ledger, gameRing, generator, publisher, clk, logger, cfg.Game)

	var cleaner reaper.RoomSweeper
	if rooms != nil {
		cleaner = rooms
	}
	gameReaper := reaper.New(gameController, cleaner, cfg.ReaperInterval, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		AuthService:    authService,
		Players:        players,
		GameController: gameController,
		Reaper:         gameReaper,
		Rooms:          rooms,
		Publisher:      publisher,
	}
}

// Close releases the event rooms, the redis connection and the store
func (a *App) Close() error {
	var errs []error
	if a.Rooms != nil {
		a.Rooms.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
