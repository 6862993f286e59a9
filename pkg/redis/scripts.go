package redis

import (
	"context"
	"fmt"
	"time"
)

// incrExpireScript starts the window on the first hit in the same round trip,
// so a counter can never outlive its window.
const incrExpireScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`

// compareDeleteScript deletes KEYS[1] only while it still holds ARGV[1].
const compareDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

// setIfGenerationScript writes KEYS[1] only while KEYS[2] still holds the
// generation the caller read before loading the value. A missing generation
// reads as "".
const setIfGenerationScript = `
local current = redis.call("GET", KEYS[2]) or ""
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1`

// bumpDeleteScript takes KEYS as (value, generation) pairs. Each value is
// dropped and its generation advanced so in-flight fills are refused.
const bumpDeleteScript = `
for i = 1, #KEYS, 2 do
  redis.call("DEL", KEYS[i])
  redis.call("INCR", KEYS[i + 1])
end
return #KEYS / 2`

// IncrWithTTL counts a hit in a fixed window of length ttl.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	return c.store.Eval(ctx, incrExpireScript, []string{key}, ttl.Milliseconds()).Int64()
}

// CompareAndDelete releases a lock only for its owner.
func (c *Client) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, compareDeleteScript, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetIfGeneration stores value under key unless generationKey moved past
// generation since the caller read it.
func (c *Client) SetIfGeneration(ctx context.Context, key, generationKey, generation string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, setIfGenerationScript, []string{key, generationKey}, generation, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BumpAndDelete drops each key and advances the matching generation key in
// one round trip. keys and generationKeys are paired by index.
func (c *Client) BumpAndDelete(ctx context.Context, keys, generationKeys []string) error {
	if c.store == nil {
		return errNotInitialized
	}
	if len(keys) != len(generationKeys) {
		return fmt.Errorf("bump and delete: %d keys but %d generation keys", len(keys), len(generationKeys))
	}
	if len(keys) == 0 {
		return nil
	}
	pairs := make([]string, 0, 2*len(keys))
	for i := range keys {
		pairs = append(pairs, keys[i], generationKeys[i])
	}
	return c.store.Eval(ctx, bumpDeleteScript, pairs).Err()
}
