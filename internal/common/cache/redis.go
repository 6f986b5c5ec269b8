package cache

import (
	"context"
	"fmt"
	"time"

	"car-advisor/internal/common/database"
)

// RedisCache namespaces every key under a prefix so Clear only touches its own entries.
type RedisCache struct {
	client *database.RedisClient
	prefix string
}

func NewRedisCache(client *database.RedisClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := c.client.Get(ctx, c.prefix+key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, ok, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if _, err := c.client.DeleteByPrefix(ctx, c.prefix); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}
