package rentals_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, prefix string) (*rentals.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	cache := rentals.NewRedisCache(&rentals.RedisCacheConfig{
		Client:    redis.NewClient(&redis.Options{Addr: server.Addr()}),
		KeyPrefix: prefix,
	})

	t.Cleanup(func() { _ = cache.Close() })

	return cache, server
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRedisCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		cache, server := newRedisCache(t, "test:")

		require.NoError(t, cache.Set(ctx, "vehicles/detail/1", freshEntry(`{"id":"1"}`)))
		assert.True(t, server.Exists("test:vehicles/detail/1"))

		entry, err := cache.Get(ctx, "vehicles/detail/1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"1"}`, string(entry.Data))
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		cache, _ := newRedisCache(t, "test:")

		_, err := cache.Get(ctx, "nope")
		require.ErrorIs(t, err, rentals.ErrCacheKeyNotFound)
		assert.False(t, cache.Has(ctx, "nope"))
	})

	t.Run("entries expire with their staleness window", func(t *testing.T) {
		t.Parallel()

		cache, server := newRedisCache(t, "test:")

		require.NoError(t, cache.Set(ctx, "short", &rentals.CacheEntry{
			Data:      []byte("x"),
			ExpiresAt: time.Now().Add(time.Minute),
		}))
		assert.Positive(t, server.TTL("test:short"))

		server.FastForward(2 * time.Minute)
		assert.False(t, cache.Has(ctx, "short"))
	})

	t.Run("already expired entries are not written", func(t *testing.T) {
		t.Parallel()

		cache, server := newRedisCache(t, "test:")

		require.NoError(t, cache.Set(ctx, "old", &rentals.CacheEntry{
			Data:      []byte("x"),
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		assert.False(t, server.Exists("test:old"))
	})

	t.Run("clear only touches the prefix", func(t *testing.T) {
		t.Parallel()

		cache, server := newRedisCache(t, "test:")

		require.NoError(t, server.Set("other:key", "keep"))
		require.NoError(t, cache.Set(ctx, "a", freshEntry("a")))
		require.NoError(t, cache.Set(ctx, "b", freshEntry("b")))

		require.NoError(t, cache.Delete(ctx, "a"))
		assert.False(t, cache.Has(ctx, "a"))

		require.NoError(t, cache.Clear(ctx))
		assert.False(t, cache.Has(ctx, "b"))
		assert.True(t, server.Exists("other:key"))
	})

	t.Run("delete prefix matches whole key parts", func(t *testing.T) {
		t.Parallel()

		cache, server := newRedisCache(t, "test:")

		for _, key := range []string{"vehicles/list/a", "vehicles/listing", "x*y/1", "xzy/1"} {
			require.NoError(t, cache.Set(ctx, key, freshEntry(key)))
		}

		require.NoError(t, cache.DeletePrefix(ctx, "vehicles/list"))
		assert.False(t, server.Exists("test:vehicles/list/a"))
		assert.True(t, server.Exists("test:vehicles/listing"))

		require.NoError(t, cache.DeletePrefix(ctx, "x*y"))
		assert.False(t, server.Exists("test:x*y/1"))
		assert.True(t, server.Exists("test:xzy/1"))
	})

	t.Run("factory applies the shared key prefix", func(t *testing.T) {
		t.Parallel()

		server := miniredis.RunT(t)

		cache, err := rentals.NewCacheFromConfig(ctx, &rentals.CacheConfig{
			Type:    rentals.CacheTypeRedis,
			Redis:   &rentals.RedisCacheConfig{Addr: server.Addr()},
			Options: &rentals.CacheOptions{KeyPrefix: "fleet:"},
		})
		require.NoError(t, err)

		require.NoError(t, cache.Set(ctx, "k", freshEntry("v")))
		assert.True(t, server.Exists("fleet:k"))
	})
}
