package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// fixedWindowScript increments the window counter and starts its expiry on
// the first hit. It returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// LimitResult is the outcome of one limiter check.
type LimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// RateLimiter is a fixed-window counter shared by every API replica.
type RateLimiter struct {
	client *Client
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per window per key.
func NewRateLimiter(client *Client, limit int, window time.Duration) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.InvalidParam("redis client is required")
	}
	if limit < 1 || window <= 0 {
		return nil, errors.InvalidParam("rate limit and window must be positive").
			WithDetailf("limit=%d window=%s", limit, window)
	}
	return &RateLimiter{client: client, limit: limit, window: window}, nil
}

// Allow counts one request for key.
func (l *RateLimiter) Allow(ctx context.Context, key string) (LimitResult, error) {
	if l.client.isClosed() {
		return LimitResult{}, ErrClientClosed
	}
	windowKey := l.client.Key("ratelimit", key, strconv.FormatInt(time.Now().UnixNano()/int64(l.window), 10))

	vals, err := fixedWindowScript.Run(ctx, l.client.rdb, []string{windowKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return LimitResult{}, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "rate limiter unavailable")
	}
	if len(vals) != 2 {
		return LimitResult{}, errors.New(errors.ErrCodeInternal, "unexpected rate limiter reply")
	}

	count := int(vals[0])
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return LimitResult{
		Allowed:    count <= l.limit,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: time.Duration(vals[1]) * time.Millisecond,
	}, nil
}
