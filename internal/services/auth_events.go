package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

// AuthChannelPrefix is the Redis pub/sub channel prefix for session changes.
const AuthChannelPrefix = "auth:session:"

// AuthEvent is the payload broadcast when the identity behind a session
// token changes. A nil Identity means the session ended.
type AuthEvent struct {
	Token     string             `json:"token"`
	Identity  *identity.Identity `json:"identity"`
	Timestamp time.Time          `json:"timestamp"`
}

// AuthEventBus fans session changes out to listeners on this instance.
type AuthEventBus interface {
	AuthPublisher
	Subscribe(token string, fn identity.Listener) (unsubscribe func())
}

// authHub is the per-instance registry of listeners keyed by session token.
// Listeners for one token are called from a single goroutine at a time, in
// publish order.
type authHub struct {
	mu        sync.Mutex
	listeners map[string]map[uint64]identity.Listener
	next      uint64
	deliverMu sync.Mutex
}

func newAuthHub() *authHub {
	return &authHub{listeners: make(map[string]map[uint64]identity.Listener)}
}

func (h *authHub) subscribe(token string, fn identity.Listener) func() {
	h.mu.Lock()
	h.next++
	key := h.next
	if h.listeners[token] == nil {
		h.listeners[token] = make(map[uint64]identity.Listener)
	}
	h.listeners[token][key] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners[token], key)
			if len(h.listeners[token]) == 0 {
				delete(h.listeners, token)
			}
		})
	}
}

func (h *authHub) fanOut(event AuthEvent) {
	h.mu.Lock()
	fns := make([]identity.Listener, 0, len(h.listeners[event.Token]))
	for _, fn := range h.listeners[event.Token] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	for _, fn := range fns {
		fn(event.Identity.Clone())
	}
}

func (h *authHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ls := range h.listeners {
		n += len(ls)
	}
	return n
}

// LocalAuthEvents delivers events in-process. It serves single-instance
// deployments and tests.
type LocalAuthEvents struct {
	hub *authHub
}

func NewLocalAuthEvents() *LocalAuthEvents {
	return &LocalAuthEvents{hub: newAuthHub()}
}

func (b *LocalAuthEvents) Publish(_ context.Context, token string, id *identity.Identity) error {
	b.hub.fanOut(AuthEvent{Token: token, Identity: id.Clone(), Timestamp: time.Now().UTC()})
	return nil
}

func (b *LocalAuthEvents) Subscribe(token string, fn identity.Listener) func() {
	return b.hub.subscribe(token, fn)
}

// RedisAuthEvents publishes through Redis so every instance sees every
// session change. Run must be started once per instance.
type RedisAuthEvents struct {
	client  *redis.Client
	hub     *authHub
	logger  *slog.Logger
	started sync.Once
	done    chan struct{}
}

func NewRedisAuthEvents(client *redis.Client, logger *slog.Logger) *RedisAuthEvents {
	return &RedisAuthEvents{client: client, hub: newAuthHub(), logger: logger, done: make(chan struct{})}
}

func (b *RedisAuthEvents) Publish(ctx context.Context, token string, id *identity.Identity) error {
	data, err := json.Marshal(AuthEvent{Token: token, Identity: id, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, AuthChannelPrefix+token, data).Err()
}

func (b *RedisAuthEvents) Subscribe(token string, fn identity.Listener) func() {
	return b.hub.subscribe(token, fn)
}

// Start runs the shared subscriber until ctx is done. Calls after the first are no-ops.
func (b *RedisAuthEvents) Start(ctx context.Context) {
	b.started.Do(func() {
		go b.run(ctx)
	})
}

// Done is closed once the subscriber started by Start has exited.
func (b *RedisAuthEvents) Done() <-chan struct{} {
	return b.done
}

func (b *RedisAuthEvents) run(ctx context.Context) {
	defer close(b.done)
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := b.client.PSubscribe(ctx, AuthChannelPrefix+"*")
			defer pubsub.Close()

			b.logger.Info("Auth event subscriber started", "pattern", AuthChannelPrefix+"*")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					b.logger.Warn("auth event subscriber error", "error", err, "retry_in", backoff)
					select {
					case <-ctx.Done():
						return
					case <-time.After(backoff):
					}
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event AuthEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("failed to unmarshal auth event", "error", err)
					continue
				}
				if event.Token == "" {
					event.Token = strings.TrimPrefix(msg.Channel, AuthChannelPrefix)
				}
				b.hub.fanOut(event)
			}
		}()
	}
}
