package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
)

const (
	// DefaultSessionTTL is 7 days
	DefaultSessionTTL = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// AuthPublisher announces identity changes for a session token.
type AuthPublisher interface {
	Publish(ctx context.Context, token string, id *identity.Identity) error
}

// SessionStore keeps one session per identity in Redis. Every change to a
// session is announced on the auth event bus so subscribed views follow it.
type SessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
	events AuthPublisher
}

func NewSessionStore(client redis.Cmdable, ttl time.Duration, events AuthPublisher) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl, events: events}
}

// Create starts a session for id and returns its token. An existing session
// for the same identity is invalidated so the TTL restarts from this sign-in.
func (s *SessionStore) Create(ctx context.Context, id *identity.Identity) (string, error) {
	if id == nil || id.ID == "" {
		return "", errors.New("session: identity id is required")
	}
	if err := s.InvalidateUser(ctx, id.ID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, SessionKeyPrefix+token, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if err := s.client.Set(ctx, UserSessionKeyPrefix+id.ID, token, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Get returns the identity behind token, or nil when the session does not exist.
func (s *SessionStore) Get(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, nil
	}
	data, err := s.client.Get(ctx, SessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var id identity.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &id, nil
}

// Refresh extends the session by the TTL from now.
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	id, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if id == nil {
		return fmt.Errorf("session not found")
	}
	if err := s.client.Expire(ctx, SessionKeyPrefix+token, s.ttl).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, UserSessionKeyPrefix+id.ID, s.ttl).Err()
}

// Invalidate ends the session and announces the sign-out.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	id, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if id != nil {
		s.client.Del(ctx, UserSessionKeyPrefix+id.ID)
	}
	if err := s.client.Del(ctx, SessionKeyPrefix+token).Err(); err != nil {
		return err
	}
	return s.publish(ctx, token, nil)
}

// InvalidateUser ends whatever session identityID currently holds, e.g.
// after a password reset.
func (s *SessionStore) InvalidateUser(ctx context.Context, identityID string) error {
	userKey := UserSessionKeyPrefix + identityID
	token, err := s.client.Get(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read session: %w", err)
	}
	if token != "" {
		s.client.Del(ctx, SessionKeyPrefix+token)
		if err := s.publish(ctx, token, nil); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, userKey).Err()
}

func (s *SessionStore) publish(ctx context.Context, token string, id *identity.Identity) error {
	if s.events == nil {
		return nil
	}
	return s.events.Publish(ctx, token, id)
}
