package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/assassingame/internal/api"
	"github.com/mcoot/assassingame/internal/config"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/factory"
	"github.com/mcoot/assassingame/internal/services/auth"
	"github.com/mcoot/assassingame/internal/services/game"
	"github.com/mcoot/assassingame/internal/storage/postgres"
	"github.com/mcoot/assassingame/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("trace flush failed", slog.String("error", err.Error()))
		}
	}()

	publicKey, err := cfg.Auth.PublicKey()
	if err != nil {
		return err
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.DSN = cfg.Storage.PostgresDSN

	redisCfg := events.DefaultRedisConfig()
	redisCfg.URL = cfg.Events.RedisURL
	redisCfg.ChannelPrefix = cfg.Events.ChannelPrefix

	// Create application factory
	app, err := factory.New(ctx, factory.Config{
		Logger:          logger,
		StorageType:     cfg.Storage.Type,
		SQLitePath:      cfg.Storage.SQLitePath,
		Postgres:        pgCfg,
		EventsTransport: cfg.Events.Transport,
		Redis:           redisCfg,
		Auth: auth.Config{
			Issuer:       cfg.Auth.Issuer,
			Audience:     cfg.Auth.Audience,
			Secret:       []byte(cfg.Auth.Secret),
			PublicKeyPEM: publicKey,
			Leeway:       cfg.Auth.Leeway,
		},
		Game:           game.Config{GameDuration: cfg.Game.Duration},
		ReaperInterval: cfg.Game.ReaperInterval,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Verifier:       app.AuthService,
		Players:        app.Players,
		GameController: app.GameController,
		Rooms:          app.Rooms,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.ShutdownTimeout = cfg.HTTP.ShutdownTimeout
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		// Open event streams would otherwise hold Shutdown until its timeout
		if app.Rooms != nil {
			app.Rooms.Close()
		}
		return server.Shutdown(context.Background())
	})
	g.Go(func() error {
		return app.Reaper.Run(gctx)
	})
	if app.Relay != nil {
		g.Go(func() error {
			return app.Relay.Run(gctx)
		})
	}

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("events", cfg.Events.Transport))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
