// Package cache implements the shared Redis caching conventions of the engine.
//
// Every mutation path that changes durable data is responsible for deleting
// or overwriting the cache keys it affects. There is no background coherence
// sweep: correctness depends on each mutator invalidating what it touched.
//
// Multi-step mutations (wholesale list replacement, fetch-and-clear of hash
// fields) run as server-side Lua scripts so readers never observe a partial
// state and concurrent writers cannot interleave.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache wraps a Redis client with the engine's key and TTL conventions.
type Cache struct {
	Redis *redis.Client
}

// New creates a Cache on top of an existing Redis client.
func New(rd *redis.Client) *Cache {
	return &Cache{Redis: rd}
}

// GetJSON reads a JSON value into out.
// Returns (false, nil) on a cache miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON writes a JSON value with a TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.Redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes keys. Missing keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.Redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// ReplaceList atomically replaces the full contents of a list key and
// refreshes its TTL. Readers observe either the old list or the new one,
// never a partially written state. An empty items slice leaves the key
// deleted, which readers treat as a miss.
func (c *Cache) ReplaceList(ctx context.Context, key string, items [][]byte, ttl time.Duration) error {
	// Script: wholesale list replacement.
	// Argument 1: TTL in seconds
	// Arguments 2..n: list entries
	// Key 1: list key
	const replaceScript = `
redis.call("DEL", KEYS[1])
for i=2,#ARGV,1 do
	redis.call("RPUSH", KEYS[1], ARGV[i])
end
if #ARGV > 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return #ARGV - 1
`
	args := make([]interface{}, 0, len(items)+1)
	args = append(args, int64(ttl/time.Second))
	for _, item := range items {
		args = append(args, item)
	}
	if err := c.Redis.Eval(ctx, replaceScript, []string{key}, args...).Err(); err != nil {
		return fmt.Errorf("cache replace list %s: %w", key, err)
	}
	return nil
}

// ListRange reads a slice of a cached list.
// Returns nil when the key is absent or the range is empty.
func (c *Cache) ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	raw, err := c.Redis.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lrange %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	items := make([][]byte, len(raw))
	for i, s := range raw {
		items[i] = []byte(s)
	}
	return items, nil
}

// ListLen returns the length of a cached list (0 for missing keys).
func (c *Cache) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := c.Redis.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache llen %s: %w", key, err)
	}
	return n, nil
}

// IncrField adds delta to a hash field and returns the new value.
func (c *Cache) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := c.Redis.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache hincrby %s %s: %w", key, field, err)
	}
	return n, nil
}

// FetchClearField atomically reads and deletes one hash field.
// Returns (0, false, nil) if the field is absent. Fetch and clear happen in
// one server-side step: two concurrent callers can never both observe the
// same non-zero value.
func (c *Cache) FetchClearField(ctx context.Context, key, field string) (int64, bool, error) {
	// Script: atomic fetch-and-clear of a single hash field.
	// Key 1: hash key
	// Argument 1: field name
	const fetchClearScript = `
local v = redis.call("HGET", KEYS[1], ARGV[1])
if not v then return false end
redis.call("HDEL", KEYS[1], ARGV[1])
return v
`
	res, err := c.Redis.Eval(ctx, fetchClearScript, []string{key}, field).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("cache fetch-clear %s %s: %w", key, field, err)
	}
	switch v := res.(type) {
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, false, fmt.Errorf("cache fetch-clear %s %s: non-integer field %q", key, field, v)
		}
		return n, true, nil
	case int64:
		return v, true, nil
	default:
		return 0, false, fmt.Errorf("cache fetch-clear %s %s: invalid return %#v", key, field, res)
	}
}

// HashFields lists the field names of a hash key.
func (c *Cache) HashFields(ctx context.Context, key string) ([]string, error) {
	fields, err := c.Redis.HKeys(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache hkeys %s: %w", key, err)
	}
	return fields, nil
}

// HashField reads one hash field without clearing it.
// Returns (0, false, nil) if the field is absent.
func (c *Cache) HashField(ctx context.Context, key, field string) (int64, bool, error) {
	n, err := c.Redis.HGet(ctx, key, field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("cache hget %s %s: %w", key, field, err)
	}
	return n, true, nil
}
