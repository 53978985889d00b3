package handlers

import (
	"context"
	"net/http"

	"github.com/cinemaguru/cinema-guru/internal/api"
	"github.com/cinemaguru/cinema-guru/internal/session"
)

type contextKey struct{}

var principalKey contextKey

// WithPrincipal resolves the session cookie when present and stores the
// principal in the request context. It never rejects; handlers that allow
// anonymous access use it to pick up personalization.
func (h *Handler) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := session.TokenFromRequest(r); token != "" {
			if p, err := h.sessions.Verify(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), principalKey, p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a valid session before any
// persistence access happens.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.TokenFromRequest(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, &api.ErrorResponse{Error: "unauthorized"})
			return
		}
		p, err := h.sessions.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, &api.ErrorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

func principalFrom(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey).(session.Principal)
	return p, ok
}
