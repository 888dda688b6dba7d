package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/assassingame/internal/api/apierr"
	"github.com/mcoot/assassingame/internal/middleware"
	"github.com/mcoot/assassingame/internal/model"
)

type identityKey struct{}

// Verifier turns a bearer token into a verified identity
type Verifier interface {
	Verify(token string) (model.Identity, error)
}

// Auth rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func Auth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}
			middleware.SetSubject(r.Context(), identity.Subject)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
		})
	}
}

// extractToken reads the bearer token; the scheme is case-insensitive.
// EventSource cannot set headers, so the events stream also accepts an
// access_token query parameter.
func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.HasSuffix(r.URL.Path, "/events") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// GetIdentity returns the verified identity from the request context
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	return identity, ok
}

// MustGetIdentity returns the verified identity. Handlers behind Auth only.
func MustGetIdentity(ctx context.Context) model.Identity {
	identity, ok := GetIdentity(ctx)
	if !ok {
		panic("no identity in request context")
	}
	return identity
}
