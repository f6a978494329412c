package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window semantics: TTL is set only on the first hit in the window.
// A key found without a TTL is given one.
var incrementWindowLua = redis.NewScript(`
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

const redisKeyPrefix = "rl:"

// RedisStore shares fixed-window counters across replicas.
// The increment runs as one Lua script so it is atomic per key.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a Store backed by the given Redis client
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

// Increment implements Store
func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration, now time.Time) (int, time.Time, error) {
	vals, err := incrementWindowLua.Run(ctx, s.redis, []string{redisKeyPrefix + key}, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment %s: %w", key, err)
	}
	if len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("increment %s: unexpected reply length %d", key, len(vals))
	}

	return int(vals[0]), now.Add(time.Duration(vals[1]) * time.Millisecond), nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
