package services

import (
	"context"
	"sync"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

// SessionReader resolves a session token to its identity.
type SessionReader interface {
	Get(ctx context.Context, token string) (*identity.Identity, error)
}

// SessionProvider is the identity provider backed by the Redis session
// store and the auth event bus.
type SessionProvider struct {
	sessions SessionReader
	events   AuthEventBus
}

func NewSessionProvider(sessions SessionReader, events AuthEventBus) *SessionProvider {
	return &SessionProvider{sessions: sessions, events: events}
}

// OnAuthStateChanged reports the identity behind token now and after every
// change. Events published while the current state is being read are held
// back and delivered after it.
func (p *SessionProvider) OnAuthStateChanged(ctx context.Context, token string, fn identity.Listener) (func(), error) {
	if token == "" {
		fn(nil)
		return func() {}, nil
	}

	var (
		mu      sync.Mutex
		ready   bool
		pending []*identity.Identity
	)
	unsubscribe := p.events.Subscribe(token, func(id *identity.Identity) {
		mu.Lock()
		defer mu.Unlock()
		if !ready {
			pending = append(pending, id)
			return
		}
		fn(id)
	})

	current, err := p.sessions.Get(ctx, token)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	mu.Lock()
	fn(current)
	for _, id := range pending {
		fn(id)
	}
	pending = nil
	ready = true
	mu.Unlock()

	return unsubscribe, nil
}
