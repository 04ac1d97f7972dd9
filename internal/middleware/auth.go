package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tokenKey    contextKey = "session_token"
)

// SessionLookup resolves a session token to its identity, or nil.
type SessionLookup interface {
	Get(ctx context.Context, token string) (*identity.Identity, error)
}

// SessionToken returns the bearer token, falling back to the token query
// parameter that websocket clients use.
func SessionToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Session attaches the caller's identity, if any, to the request context.
// Requests without a valid session pass through unauthenticated.
func Session(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), tokenKey, token)
			if id, err := sessions.Get(r.Context(), token); err == nil && id != nil {
				ctx = context.WithValue(ctx, identityKey, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that carry no signed-in identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFrom returns the identity attached by Session.
func IdentityFrom(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey).(*identity.Identity)
	return id
}

// TokenFrom returns the session token attached by Session.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

// WithIdentity returns ctx carrying id, for tests and internal callers.
func WithIdentity(ctx context.Context, token string, id *identity.Identity) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	return context.WithValue(ctx, identityKey, id)
}
