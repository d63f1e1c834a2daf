package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// Cache wraps Redis helpers for JSON payloads. Calls go through the breaker
// when one is configured, so an unhealthy Redis degrades to cache misses.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.Breaker
}

// New constructs a cache helper. A nil client disables caching.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// WithBreaker guards every Redis call with b.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	c.breaker = b
	return c
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, key, data, c.ttl).Err()
	})
}

// SetJSONIfAbsent stores v only when key does not exist yet. It reports whether v was written.
func (c *Cache) SetJSONIfAbsent(ctx context.Context, key string, v any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	var stored bool
	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		stored, err = c.client.SetNX(ctx, key, data, c.ttl).Result()
		return err
	})
	return stored, err
}

// DeletePrefix removes every key starting with prefix and returns how many were deleted.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if c == nil || c.client == nil || prefix == "" {
		return 0, nil
	}
	deleted := 0
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == cap(batch) {
				n, err := c.client.Del(ctx, batch...).Result()
				if err != nil {
					return err
				}
				deleted += int(n)
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return err
			}
			deleted += int(n)
		}
		return nil
	})
	return deleted, err
}
