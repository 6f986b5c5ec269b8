// Package cache provides the TTL cache used for image search results.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores opaque values for a bounded time. Keys never interfere with each other.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Clear(ctx context.Context) error
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Expired entries are dropped lazily on Get and
// in bulk by the janitor started with Start.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = entry{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// a concurrent Set may have replaced it
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start launches the janitor. Close stops it.
func (c *MemoryCache) Start(interval time.Duration) {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.purge()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *MemoryCache) Close() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
}

func (c *MemoryCache) purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
