package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// RateLimiter implements domain.RateLimiter as a fixed-window counter. Each
// window gets its own key that expires with the window.
type RateLimiter struct {
	rdb   *redis.Client
	clock clockwork.Clock
}

// NewRateLimiter creates a RateLimiter. A nil clock uses the real clock.
func NewRateLimiter(c *Client, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{rdb: c.Underlying(), clock: clock}
}

func rateLimitKey(key string, bucket int64) string {
	return "ratelimit:" + key + ":" + strconv.FormatInt(bucket, 10)
}

// Allow counts one request for key and reports whether it is within limit
// for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, fmt.Errorf("redis: rate limit %s: window must be positive", key)
	}
	bucket := rl.clock.Now().UnixNano() / int64(window)
	k := rateLimitKey(key, bucket)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return incr.Val() <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
