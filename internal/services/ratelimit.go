package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SendRateLimitPrefix is the Redis key prefix for per-sender counters
	SendRateLimitPrefix = "ratelimit:send:"
	// SendRateLimitWindow is the fixed window the limit applies to
	SendRateLimitWindow = time.Minute
)

// SendLimiter caps how many messages one sender may append per window.
type SendLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewSendLimiter returns nil when limit is not positive, which disables limiting.
func NewSendLimiter(client *redis.Client, limit int) *SendLimiter {
	if limit <= 0 {
		return nil
	}
	return &SendLimiter{client: client, limit: limit, window: SendRateLimitWindow}
}

// Allow counts one send for code. It returns the remaining allowance and
// whether the send may proceed. Redis failures fail open.
func (l *SendLimiter) Allow(ctx context.Context, code string) (remaining int, allowed bool) {
	if l == nil {
		return 0, true
	}
	key := SendRateLimitPrefix + code

	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return l.limit, true
	}
	if n == 1 {
		// First send in this window starts the clock.
		l.client.Expire(ctx, key, l.window)
	}

	count := int(n)
	if count > l.limit {
		return 0, false
	}
	return l.limit - count, true
}

// Limit is the number of sends allowed per window.
func (l *SendLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}

// Window is the length of the fixed window.
func (l *SendLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.window
}
