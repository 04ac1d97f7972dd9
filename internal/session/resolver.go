// Package session turns the identity provider's auth-state stream into the
// current identity of one consumer, redirects signed-out consumers to the
// login route and keeps the consumer's profile view in step with the identity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

var errNoProvider = errors.New("identity provider not configured")

// Resolver subscribes consumers to the identity provider.
type Resolver struct {
	provider identity.Provider
	logger   *slog.Logger
}

// NewResolver returns a resolver over p. A nil p is allowed and resolves
// every subscription to signed out.
func NewResolver(p identity.Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: p, logger: logger}
}

// Subscribe calls onChange with the current identity, or nil, and again on
// every change until the returned function is called. After unsubscribe
// returns no new invocation of onChange begins. If the provider cannot be
// reached onChange receives a single nil.
func (r *Resolver) Subscribe(ctx context.Context, token string, onChange identity.Listener) (unsubscribe func()) {
	sub := &subscription{onChange: onChange}
	sub.mounted.Store(true)

	if r.provider == nil {
		r.logger.Warn("auth state unavailable, treating as signed out", "error", errNoProvider)
		sub.deliver(nil)
		return sub.unsubscribe
	}

	stop, err := r.provider.OnAuthStateChanged(ctx, token, sub.deliver)
	if err != nil {
		r.logger.Warn("auth state unavailable, treating as signed out", "error", err)
		sub.deliver(nil)
		return sub.unsubscribe
	}
	sub.setStop(stop)
	return sub.unsubscribe
}

type subscription struct {
	onChange identity.Listener
	mounted  atomic.Bool

	// deliverMu keeps notifications in provider order.
	deliverMu sync.Mutex

	stopMu   sync.Mutex
	stop     func()
	stopOnce sync.Once
}

func (s *subscription) deliver(id *identity.Identity) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.mounted.Load() {
		return
	}
	s.onChange(id.Clone())
}

func (s *subscription) setStop(stop func()) {
	if stop == nil {
		return
	}
	s.stopMu.Lock()
	s.stop = stop
	s.stopMu.Unlock()
	if !s.mounted.Load() {
		s.release()
	}
}

// unsubscribe does not take deliverMu so onChange may call it.
func (s *subscription) unsubscribe() {
	s.mounted.Store(false)
	s.release()
}

func (s *subscription) release() {
	s.stopMu.Lock()
	stop := s.stop
	s.stopMu.Unlock()
	if stop == nil {
		return
	}
	s.stopOnce.Do(stop)
}
