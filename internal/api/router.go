package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/assassingame/internal/api/handler"
	"github.com/mcoot/assassingame/internal/api/middleware"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/services/game"
	"github.com/mcoot/assassingame/internal/services/player"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	Verifier       middleware.Verifier
	Players        *player.Registry
	GameController *game.Controller
	// Rooms serves live events; nil disables the events endpoint
	Rooms          *events.Rooms
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Players, cfg.GameController)
	gameHandler := handler.NewGameHandler(cfg.GameController)
	eventsHandler := handler.NewEventsHandler(cfg.GameController, cfg.Rooms)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Verifier)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Public routes
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/games/{code}/status", gameHandler.Status).Methods(http.MethodGet)

	// Player routes
	players := api.PathPrefix("/players").Subrouter()
	players.Use(authMiddleware)
	players.HandleFunc("/register", playerHandler.Register).Methods(http.MethodPost)
	players.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	players.HandleFunc("/me/info", playerHandler.GetInfo).Methods(http.MethodGet)

	// Game routes
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("", gameHandler.Create).Methods(http.MethodPost)
	games.HandleFunc("/{code}/join", gameHandler.Join).Methods(http.MethodPost)
	games.HandleFunc("/{code}/start", gameHandler.Start).Methods(http.MethodPost)
	games.HandleFunc("/{code}/kill", gameHandler.Kill).Methods(http.MethodPost)
	games.HandleFunc("/{code}/leave", gameHandler.Leave).Methods(http.MethodPost)
	games.HandleFunc("/{code}/stop", gameHandler.Stop).Methods(http.MethodPost)
	games.HandleFunc("/{code}/info", gameHandler.Info).Methods(http.MethodGet)
	games.HandleFunc("/{code}/codenames", gameHandler.Codenames).Methods(http.MethodGet)
	games.HandleFunc("/{code}/agent", gameHandler.Agent).Methods(http.MethodGet)
	games.HandleFunc("/{code}/end", gameHandler.End).Methods(http.MethodGet)
	games.HandleFunc("/{code}/events", eventsHandler.Stream).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
