package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window rate limiting backed by Redis sorted sets.
type Limiter struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewLimiter creates a rate limiter whose keys live under prefix. A nil
// client disables limiting (every check passes).
func NewLimiter(rdb redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{rdb: rdb, prefix: prefix}
}

// slidingWindowScript trims entries older than the window, then admits the
// request if the remaining count is below the limit.
// KEYS[1] sorted set; ARGV: window start, now (unix micro), limit, ttl seconds.
// Returns {count, allowed}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1}
end

redis.call('EXPIRE', key, ttl)
return {count, 0}
`)

// Check admits or rejects one request for key. Redis failures fail open.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := time.Now()
	open := LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}
	if l.rdb == nil {
		return open, nil
	}

	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{l.prefix + key},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, int64(window.Seconds())+1,
	).Int64Slice()
	if err != nil {
		slog.Warn("rate limit check failed, allowing request", "error", err, "key", key)
		return open, nil
	}

	count, allowed := result[0], result[1] == 1
	remaining := max(limit-count, 0)

	var retryAfter time.Duration
	if !allowed {
		retryAfter = window / 2
	}

	return LimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    now.Add(window),
		RetryAfter: retryAfter,
	}, nil
}
