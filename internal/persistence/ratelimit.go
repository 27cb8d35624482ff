package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window counter over Redis, used to slow down
// password-reset request floods. It fails open: when Redis is unreachable
// the request proceeds, because rate limiting must never take the reset flow
// down with it.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	limit  int
	window time.Duration
}

// NewRateLimiter builds a limiter allowing limit requests per window per key.
func NewRateLimiter(r *Redis, logger *zap.Logger, limit int, window time.Duration) *RateLimiter {
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{client: client, logger: logger, limit: limit, window: window}
}

// Allow reports whether the key is still under its window budget.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}

	count, err := l.client.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, "ratelimit:"+key, l.window).Err(); err != nil {
			l.logger.Warn("rate limiter expire failed", zap.Error(err))
		}
	}
	return count <= int64(l.limit)
}
