package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash with 'tokens' and 'ts' (ms) fields
// ARGV capacity, interval (ms), now (ms)
const takeScript = `
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = capacity
local ts = now
if state[1] and state[2] then
  tokens = tonumber(state[1])
  ts = tonumber(state[2])
end

if now > ts then
  tokens = math.min(capacity, tokens + (now - ts) * capacity / interval)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("PEXPIRE", KEYS[1], interval)
return allowed
`

var takeLua = redis.NewScript(takeScript)

const defaultRedisPrefix = "rl:"

type RedisConfig struct {
	// Key namespace, 'rl:' if not set
	Prefix string

	// time.Now if not set
	Clock func() time.Time
}

// RedisStore keeps buckets in redis, so every instance of the service shares quotas
// The bucket is updated by a single script, idle buckets expire after one refill interval
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	clock  func() time.Time
}

func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &RedisStore{
		redis:  client,
		prefix: cfg.Prefix,
		clock:  cfg.Clock,
	}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit Limit) (bool, error) {
	allowed, err := takeLua.Run(ctx, s.redis,
		[]string{s.prefix + key},
		limit.Capacity, limit.Interval.Milliseconds(), s.clock().UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis bucket error: %w", err)
	}

	return allowed == 1, nil
}
