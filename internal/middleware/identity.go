// Package middleware provides HTTP middlewares for identity resolution and
// request logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session_token"

// Resolver maps request credentials to a billing identity.
type Resolver interface {
	Resolve(ctx context.Context, token, clientIP string) (models.Identity, error)
}

// SessionToken returns the session token of r. The cookie wins over an
// "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// WithIdentity resolves the caller of every request and stores the result
// in the request context. Unknown or expired sessions continue as anonymous
// callers; a storage failure ends the request with 500.
func WithIdentity(resolver Resolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Context(), SessionToken(r), ClientIP(r))
			if err != nil {
				log.Error("identity resolution failed", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "internal error"})
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}
