package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var signInLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// ErrRateLimited marks a sign-in refused by the Limiter. It is always
// wrapped together with domain.ErrAuthentication.
var ErrRateLimited = errors.New("too many attempts")

// Limiter throttles repeated sign-in attempts for one subject.
type Limiter interface {
	// Allow records an attempt and reports whether it is within the limit.
	// When it is not, retryAfter says how long until the window resets.
	Allow(ctx context.Context, subject string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit attempts per subject per window.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "wayfarer"
	}
	return &RedisLimiter{client: client, prefix: prefix + ":signin", limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if l == nil || l.client == nil || l.limit <= 0 || l.window <= 0 || subject == "" {
		return true, 0, nil
	}

	windowMs := max(l.window.Milliseconds(), 1000)
	raw, err := signInLimitScript.Run(ctx, l.client, []string{l.prefix + ":" + subject}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("auth.RedisLimiter.Allow: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("auth.RedisLimiter.Allow: unexpected response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("auth.RedisLimiter.Allow: unexpected count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	if count > int64(l.limit) {
		return false, time.Duration(ttlMs) * time.Millisecond, nil
	}
	return true, 0, nil
}
