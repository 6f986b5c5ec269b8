package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"car-advisor/internal/common/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ==========================
// MemoryCache
// ==========================

func TestMemoryCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "toyota corolla", []byte(`[1]`), time.Minute))

	got, ok, err := c.Get(ctx, "toyota corolla")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[1]`), got)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "toyota corolla")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, c.Clear(ctx))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Purge(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.purge())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_ConcurrentKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			_ = c.Set(ctx, key, []byte(key), time.Minute)
			got, ok, _ := c.Get(ctx, key)
			assert.True(t, ok)
			assert.Equal(t, key, string(got))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache()
	c.Start(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	c.Close()
	c.Close()
}

// ==========================
// RedisCache
// ==========================

func newMiniredisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(database.NewRedisFromClient(client), "test:"), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisCache(t)

	require.NoError(t, c.Set(ctx, "img:honda civic", []byte(`[]`), time.Hour))
	assert.True(t, mr.Exists("test:img:honda civic"))

	got, ok, err := c.Get(ctx, "img:honda civic")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(got))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "img:honda civic")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisCache(t)

	require.NoError(t, mr.Set("other:key", "keep"))
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
	}

	require.NoError(t, c.Clear(ctx))

	assert.True(t, mr.Exists("other:key"))
	for i := 0; i < 5; i++ {
		assert.False(t, mr.Exists(fmt.Sprintf("test:k%d", i)))
	}
}

func TestRedisCache_GetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(database.NewRedisFromClient(db), "p:")

	mock.ExpectGet("p:broken").SetErr(errors.New("connection reset"))

	_, ok, err := c.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MissIsNotError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(database.NewRedisFromClient(db), "p:")

	mock.ExpectGet("p:absent").RedisNil()

	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
