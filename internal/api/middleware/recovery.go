package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/assassingame/internal/api/apierr"
	"github.com/mcoot/assassingame/internal/middleware"
)

// Recovery answers handler panics with a 500 error envelope
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
