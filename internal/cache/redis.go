package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a redis.Client-backed cache tier shared across process
// instances. Every entry is written with SETEX so expiry is enforced by
// the server itself, not by client-side bookkeeping that can drift.
type Redis struct {
	client *redis.Client
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis wraps an existing redis.Client. prefix is prepended to every
// key so the pricing/metadata cache can share a Redis instance with other
// subsystems without collision.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (c *Redis) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get returns the value for key, or (nil, false, nil) on a cache miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.hits.Add(1)
	return val, true, nil
}

// Set stores value for key with the given TTL via SETEX.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	return c.client.Set(ctx, c.fullKey(key), value, time.Duration(ttlSeconds)*time.Second).Err()
}

// Delete removes key.
func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.fullKey(key)).Err()
}

// Exists reports whether key is present, without affecting hit/miss counts.
func (c *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HitRate returns hits / (hits + misses) observed by this process.
func (c *Redis) HitRate() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
