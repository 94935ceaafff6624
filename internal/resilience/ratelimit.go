package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is the Redis-backed sliding-window limiter. A request is
// allowed iff the post-increment count within the trailing window is
// <= limit. On store failure it fails open: rate limiting is
// defense-in-depth and its outage must not cause outages.
type RateLimiter struct {
	client redis.Cmdable
}

func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client}
}

func (rl *RateLimiter) key(action string) string {
	return "ratelimit:" + action
}

// Allow admits or denies one request for the action key. On denial the
// error carries retryAfterSeconds from the key's remaining TTL.
func (rl *RateLimiter) Allow(ctx context.Context, action string, limit int, window time.Duration) error {
	if rl.client == nil {
		return nil
	}

	key := rl.key(action)

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		log := logger.WithComponent("rate_limiter")
		log.Warn().Err(err).Str("action", action).
			Msg("store failure, failing open")
		return nil
	}

	// First admission in the window owns the TTL. If the TTL cannot be set
	// the counter would never expire and lock the caller out permanently, so
	// drop the key and fail open instead.
	if count == 1 {
		if err := rl.client.Expire(ctx, key, window).Err(); err != nil {
			log := logger.WithComponent("rate_limiter")
			log.Warn().Err(err).Str("action", action).
				Msg("ttl set failed, failing open")
			rl.client.Del(ctx, key)
			return nil
		}
	}

	if count > int64(limit) {
		retryAfter := int(window.Seconds())
		if ttl, err := rl.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			retryAfter = int(ttl.Seconds()) + 1
		}
		metrics.RecordRateLimited(action)
		return domain.ErrRateLimited(
			fmt.Sprintf("rate limit exceeded: %d requests per %v", limit, window),
			retryAfter,
		)
	}

	return nil
}
