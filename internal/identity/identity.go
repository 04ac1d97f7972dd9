// Package identity defines the authenticated-session record issued by the
// identity provider and the auth-state stream consumers subscribe to.
package identity

import (
	"context"
	"strings"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Identity is owned by the identity provider and is read-only to the rest
// of the application.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// Listener receives the current identity, or nil when the session is
// unauthenticated.
type Listener func(*Identity)

// Provider is the identity provider's auth-state stream for one session
// token. Implementations must invoke fn with the current state before
// returning and then once per change, in order, until stop is called.
type Provider interface {
	OnAuthStateChanged(ctx context.Context, token string, fn Listener) (stop func(), err error)
}

// LocalPart returns the part of an email address before the '@'.
func LocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// Clone returns a copy that callers may keep after the provider mutates its own.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
