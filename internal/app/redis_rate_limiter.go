package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// withdrawalRateLimitScript counts requests in a fixed window. The first INCR
// arms the window's expiry; the remaining TTL tells a limited caller how long
// until it resets.
var withdrawalRateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// RedisWithdrawalLimiter caps how many withdrawal requests a single creator can
// open per minute, backed by a shared Redis so the cap holds across replicas.
type RedisWithdrawalLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisWithdrawalLimiter builds a limiter allowing perMinute requests per user.
func NewRedisWithdrawalLimiter(client redis.UniversalClient, prefix string, perMinute int) *RedisWithdrawalLimiter {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "monetize:rate_limit"
	}
	return &RedisWithdrawalLimiter{
		client: client,
		prefix: strings.TrimSuffix(trimmed, ":"),
		limit:  perMinute,
		window: time.Minute,
	}
}

// AllowWithdrawalRequest consumes one slot from the user's current window.
// When the window is exhausted it reports how many seconds remain until reset.
func (r *RedisWithdrawalLimiter) AllowWithdrawalRequest(ctx context.Context, userID uuid.UUID) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true, 0, nil
	}

	windowMs := r.window.Milliseconds()
	key := fmt.Sprintf("%s:withdrawal_request:%s", r.prefix, userID)
	raw, err := withdrawalRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, err
	}

	count, retryAfter, err := parseLimiterReply(raw, windowMs)
	if err != nil {
		return false, 0, err
	}
	if count > int64(r.limit) {
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// parseLimiterReply unpacks the {count, ttl_ms} pair the script returns. A
// negative TTL means the key carries no expiry, so the full window is assumed.
// The retry-after is rounded up to whole seconds and never below one.
func parseLimiterReply(raw interface{}, windowMs int64) (count int64, retryAfterSeconds int, err error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply shape: %T", raw)
	}
	count, ok = values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return count, retryAfter, nil
}
