package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/planpal-backend/internal/profile"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// ProfileCacheTTL bounds how long a profile may be served from cache.
	ProfileCacheTTL = time.Hour

	versionSuffix = ":version"
	// versionTTL must outlive any read that could still be filling the cache.
	versionTTL = 24 * time.Hour
)

// CacheService stores JSON values in Redis. Each key has a version counter;
// Invalidate bumps it and SetIfVersion refuses fills read under an older one.
type CacheService struct {
	client redis.UniversalClient
}

func NewCacheService(client redis.UniversalClient) *CacheService {
	return &CacheService{client: client}
}

// Get loads key into dest. A miss returns false with no error.
func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Version returns the current version of key, zero if it was never invalidated.
func (c *CacheService) Version(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, CacheKeyPrefix+key+versionSuffix).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetIfVersion stores value under key for ttl only if key is still at
// version. It reports whether the value was stored.
func (c *CacheService) SetIfVersion(ctx context.Context, key string, version int64, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	versionKey := CacheKeyPrefix + key + versionSuffix

	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, CacheKeyPrefix+key, data, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate drops key and bumps its version.
func (c *CacheService) Invalidate(ctx context.Context, key string) error {
	versionKey := CacheKeyPrefix + key + versionSuffix
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, CacheKeyPrefix+key)
		return nil
	})
	return err
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

// CachedProfileRepository serves profile reads from Redis and invalidates
// the cached copy on every merge. A read that overlaps a merge is not cached.
// Redis errors fall through to the underlying repository.
type CachedProfileRepository struct {
	next   profile.Repository
	cache  *CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProfileRepository(next profile.Repository, cache *CacheService, logger *slog.Logger) *CachedProfileRepository {
	return &CachedProfileRepository{next: next, cache: cache, ttl: ProfileCacheTTL, logger: logger}
}

func (r *CachedProfileRepository) Find(ctx context.Context, id string) (*profile.Record, error) {
	key := CacheKey("profile", id)
	var rec profile.Record
	hit, err := r.cache.Get(ctx, key, &rec)
	if err != nil {
		r.logger.Warn("profile cache read failed", "identity_id", id, "error", err)
	}
	if hit {
		return &rec, nil
	}

	// Taken before the read so a merge landing during it blocks the fill.
	version, versionErr := r.cache.Version(ctx, key)

	found, err := r.next.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if versionErr != nil {
		return found, nil
	}
	if _, err := r.cache.SetIfVersion(ctx, key, version, found, r.ttl); err != nil {
		r.logger.Warn("profile cache write failed", "identity_id", id, "error", err)
	}
	return found, nil
}

func (r *CachedProfileRepository) Merge(ctx context.Context, id string, patch profile.Patch) error {
	if err := r.next.Merge(ctx, id, patch); err != nil {
		return err
	}
	// A stale copy outliving a failed invalidation is bounded by the TTL.
	if err := r.cache.Invalidate(ctx, CacheKey("profile", id)); err != nil {
		r.logger.Warn("profile cache invalidation failed", "identity_id", id, "error", err)
	}
	return nil
}
