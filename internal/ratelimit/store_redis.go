// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/finsight/internal/platform/constants"
)

// incrWindowScript increments the current sub-window counter and reads the
// previous one in a single server-side operation. Running it as a Lua script
// is what makes increment-and-check atomic under concurrent callers racing on
// the same key — there is no application-level read-then-write to interleave.
var incrWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local previous = tonumber(redis.call("GET", KEYS[2]))
if previous == nil then
  previous = 0
end
return {current, previous}
`)

// RedisCounterStore implements [CounterStore] on the shared Redis instance.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// IncrWindow atomically increments the counter for the sub-window identified
// by windowIndex and returns it together with the previous sub-window's count.
func (store *RedisCounterStore) IncrWindow(ctx context.Context, key string, windowIndex int64, ttl time.Duration) (int64, int64, error) {
	currentKey := windowKey(key, windowIndex)
	previousKey := windowKey(key, windowIndex-1)

	raw, err := incrWindowScript.Run(ctx, store.client,
		[]string{currentKey, previousKey},
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: counter store increment failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("ratelimit: unexpected script reply %T", raw)
	}

	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("ratelimit: unexpected current counter type %T", values[0])
	}

	previous, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("ratelimit: unexpected previous counter type %T", values[1])
	}

	return current, previous, nil
}

// windowKey builds the namespaced key for one sub-window of one limiter key.
func windowKey(key string, index int64) string {
	return constants.RedisPrefixRateLimit + key + ":" + strconv.FormatInt(index, 10)
}
