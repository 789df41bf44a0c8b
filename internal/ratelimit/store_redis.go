package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "skillhub/internal/platform/redis"
)

// allowScript trims, counts and records in one atomic step so two requests
// racing at the cap cannot both slip under it. Scores are milliseconds; Lua
// numbers lose integer precision past 2^53, which nanoseconds would exceed.
// Returns {allowed, count, resetAtMillis}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local span = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - span)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = now + span
	if oldest[2] then
		reset = tonumber(oldest[2]) + span
	end
	return {0, count, reset}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, span)
return {1, count + 1, now + span}
`)

// RedisLimiter keeps the sliding window in a Redis sorted set keyed by hit
// timestamp, so every replica sees the same counter. Member values carry a
// nanosecond timestamp plus a sequence suffix to keep concurrent hits from
// collapsing into one set member.
type RedisLimiter struct {
	client *platformredis.Client
	now    func() time.Time
	seq    atomic.Int64
}

func NewRedisLimiter(client *platformredis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, span time.Duration) (*Result, error) {
	now := l.now()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1))

	vals, err := allowScript.Run(ctx, l.client, []string{"ratelimit:" + key},
		now.UnixMilli(), span.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("ratelimit eval: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("ratelimit eval: unexpected reply length %d", len(vals))
	}

	allowed := vals[0] == 1
	count := int(vals[1])
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(vals[2]),
		Limit:     limit,
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, "ratelimit:"+key).Err(); err != nil {
		return fmt.Errorf("ratelimit reset: %w", err)
	}
	return nil
}
