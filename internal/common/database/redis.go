// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"car-advisor/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}, nil
}

// NewRedisFromClient wraps an already configured client.
func NewRedisFromClient(c *redis.Client) *RedisClient {
	return &RedisClient{Client: c}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Get returns the raw value and whether the key existed.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set sets a value with optional expiration
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Client.Set(ctx, key, value, expiration).Err()
}

// Del deletes one or more keys
func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

// DeleteByPrefix removes every key starting with prefix using SCAN so large keyspaces are not blocked.
func (c *RedisClient) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.Client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s*: %w", prefix, err)
		}
		if err := c.Del(ctx, keys...); err != nil {
			return removed, fmt.Errorf("delete batch: %w", err)
		}
		removed += len(keys)
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
