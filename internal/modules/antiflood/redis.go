package antiflood

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const RedisKeyPrefix = "flood:"

// hitScript mirrors MemoryCounter.Hit so several bot processes can share counters.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local start = tonumber(redis.call('HGET', KEYS[1], 'start') or '0')
if redis.call('EXISTS', KEYS[1]) == 0 or now - start > window then
  count = 1
  start = now
else
  count = count + 1
end
local triggered = 0
if count > limit then
  count = 0
  triggered = 1
end
redis.call('HSET', KEYS[1], 'count', count, 'start', start)
redis.call('PEXPIRE', KEYS[1], window * 2)
return {count, triggered}
`)

type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Hit(ctx context.Context, key Key, now time.Time, window time.Duration, limit int) (Hit, error) {
	values, err := hitScript.Run(ctx, c.client, []string{redisKey(key)}, now.UnixMilli(), window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return Hit{}, fmt.Errorf("flood counter: %w", err)
	}
	if len(values) != 2 {
		return Hit{}, fmt.Errorf("flood counter: unexpected reply %v", values)
	}
	return Hit{Count: int(values[0]), Triggered: values[1] == 1}, nil
}

func redisKey(key Key) string {
	return RedisKeyPrefix + strconv.FormatInt(key.ChatID, 10) + ":" + strconv.FormatInt(key.UserID, 10)
}
