package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/planpal-backend/pkg/clientip"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = 15 * time.Minute
)

// RedisRateLimiter counts requests per client IP in Redis so the limit holds
// across instances. IPs that exceed it are blocked for BlockedIPDuration.
type RedisRateLimiter struct {
	client redis.Cmdable
	max    int64
	window time.Duration
	block  time.Duration
	logger *slog.Logger
}

func NewRedisRateLimiter(client redis.Cmdable, logger *slog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		max:    RateLimitMaxRequests,
		window: RateLimitWindow,
		block:  BlockedIPDuration,
		logger: logger,
	}
}

func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		ctx := r.Context()

		blocked, err := l.IsBlocked(ctx, ip)
		if err == nil && blocked {
			writeTooMany(w, "Too many requests. Please try again later.")
			return
		}

		count, err := l.hit(ctx, ip)
		if err != nil {
			// Redis unavailable: fail open.
			l.logger.Warn("rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > l.max {
			if err := l.client.Set(ctx, BlockedIPKeyPrefix+ip, "1", l.block).Err(); err != nil {
				l.logger.Warn("failed to block ip", "ip", ip, "error", err)
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.block.Seconds())))
			writeTooMany(w, fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", int(l.block.Minutes())))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(l.max-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// hit counts one request in the current window.
func (l *RedisRateLimiter) hit(ctx context.Context, ip string) (int64, error) {
	key := RateLimitKeyPrefix + ip
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First request in this window
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// IsBlocked checks if an IP is currently blocked
func (l *RedisRateLimiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := l.client.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return n > 0, err
}

func writeTooMany(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
