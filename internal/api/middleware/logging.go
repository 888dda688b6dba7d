package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/assassingame/internal/middleware"
)

// Logging logs API requests under the "api" component
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger.With(slog.String("component", "api")))
}
