// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage types
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Event transports
const (
	EventsNone   = "none"
	EventsMemory = "memory"
	EventsRedis  = "redis"
)

// Config is the full server configuration
type Config struct {
	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Events    EventsConfig    `envPrefix:"EVENTS_"`
	Game      GameConfig      `envPrefix:"GAME_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
}

// HTTPConfig configures the HTTP listener
type HTTPConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// StorageConfig selects and configures the store
type StorageConfig struct {
	Type        string `env:"TYPE" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"assassin.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	Issuer        string        `env:"ISSUER"`
	Audience      string        `env:"AUDIENCE"`
	Secret        string        `env:"SECRET"`
	PublicKeyFile string        `env:"PUBLIC_KEY_FILE"`
	Leeway        time.Duration `env:"LEEWAY" envDefault:"30s"`
}

// EventsConfig selects the event transport
type EventsConfig struct {
	Transport     string `env:"TRANSPORT" envDefault:"memory"`
	RedisURL      string `env:"REDIS_URL"`
	ChannelPrefix string `env:"CHANNEL_PREFIX" envDefault:"assassin:game:"`
}

// GameConfig holds lifecycle policy
type GameConfig struct {
	Duration       time.Duration `env:"DURATION" envDefault:"72h"`
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`
}

// TelemetryConfig configures trace export. Tracing is off without an endpoint.
type TelemetryConfig struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"assassin-server"`
	Endpoint    string `env:"EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env files (missing files are ignored), then the environment
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Type {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("STORAGE_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type))
	}

	switch c.Events.Transport {
	case EventsNone, EventsMemory:
	case EventsRedis:
		if c.Events.RedisURL == "" {
			errs = append(errs, errors.New("EVENTS_REDIS_URL is required for redis events"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_TRANSPORT %q", c.Events.Transport))
	}

	if c.Auth.Secret == "" && c.Auth.PublicKeyFile == "" {
		errs = append(errs, errors.New("one of AUTH_SECRET or AUTH_PUBLIC_KEY_FILE is required"))
	}
	if c.Game.Duration <= 0 {
		errs = append(errs, errors.New("GAME_DURATION must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps the configured level name, defaulting to info
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PublicKey reads the configured PEM file, if any
func (c AuthConfig) PublicKey() ([]byte, error) {
	if c.PublicKeyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read auth public key: %w", err)
	}
	return data, nil
}
