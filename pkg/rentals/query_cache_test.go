package rentals_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryCache() *rentals.QueryCache {
	return rentals.NewQueryCache(rentals.NewMemoryCache(100), &rentals.CacheOptions{DefaultStaleTime: time.Minute}, nil)
}

func countingFetcher(calls *atomic.Int32, data string) rentals.Fetcher {
	return func(ctx context.Context) ([]byte, error) {
		calls.Add(1)

		return []byte(data), nil
	}
}

func TestQueryCache_Fetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("second read is served from cache", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		var calls atomic.Int32

		for range 3 {
			data, err := cache.Fetch(ctx, rentals.VehicleKey("1"), 0, countingFetcher(&calls, "v1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), data)
		}

		assert.Equal(t, int32(1), calls.Load())

		stats := cache.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("stale entries are refetched", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		var calls atomic.Int32

		_, err := cache.Fetch(ctx, rentals.ProfileKey(), time.Millisecond, countingFetcher(&calls, "p"))
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		_, err = cache.Fetch(ctx, rentals.ProfileKey(), time.Millisecond, countingFetcher(&calls, "p"))
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		_, err := cache.Fetch(ctx, rentals.RentalsKey(), 0, func(ctx context.Context) ([]byte, error) {
			return nil, rentals.ErrServer
		})
		require.ErrorIs(t, err, rentals.ErrServer)
		assert.False(t, cache.Has(ctx, rentals.RentalsKey()))
	})
}

func TestQueryCache_Dedup(t *testing.T) {
	t.Parallel()

	cache := newQueryCache()
	ctx := context.Background()
	release := make(chan struct{})

	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release

		return []byte("shared"), nil
	}

	const readers = 5

	var wg sync.WaitGroup

	results := make([][]byte, readers)

	for i := range readers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], _ = cache.Fetch(ctx, rentals.MyListingsKey(), 0, fetch)
		}()
	}

	require.Eventually(t, func() bool {
		return cache.Stats().Misses == readers
	}, time.Second, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, result := range results {
		assert.Equal(t, []byte("shared"), result)
	}

	assert.Equal(t, int64(readers), cache.Stats().Shared)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestQueryCache_Invalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("prefix drops every matching read", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		var calls atomic.Int32

		keys := []rentals.QueryKey{
			rentals.VehicleListKey(rentals.NewVehicleQuery().WithPage(1)),
			rentals.VehicleListKey(rentals.NewVehicleQuery().WithPage(2)),
			rentals.VehicleKey("1"),
		}

		for _, key := range keys {
			_, err := cache.Fetch(ctx, key, 0, countingFetcher(&calls, "x"))
			require.NoError(t, err)
		}

		require.NoError(t, cache.Invalidate(ctx, rentals.VehicleListsKey()))

		assert.False(t, cache.Has(ctx, keys[0]))
		assert.False(t, cache.Has(ctx, keys[1]))
		assert.True(t, cache.Has(ctx, keys[2]))
	})

	t.Run("mutation uses the invalidation table", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		var calls atomic.Int32

		for _, key := range []rentals.QueryKey{rentals.BookingKey("b1"), rentals.RentalsKey(), rentals.ProfileKey()} {
			_, err := cache.Fetch(ctx, key, 0, countingFetcher(&calls, "x"))
			require.NoError(t, err)
		}

		require.NoError(t, cache.InvalidateMutation(ctx, rentals.MutationBookingCancel, rentals.MutationTarget{BookingID: "b1"}))

		assert.False(t, cache.Has(ctx, rentals.BookingKey("b1")))
		assert.False(t, cache.Has(ctx, rentals.RentalsKey()))
		assert.True(t, cache.Has(ctx, rentals.ProfileKey()))
	})

	t.Run("session change clears everything", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()

		var calls atomic.Int32

		_, err := cache.Fetch(ctx, rentals.ProfileKey(), 0, countingFetcher(&calls, "x"))
		require.NoError(t, err)

		require.NoError(t, cache.InvalidateMutation(ctx, rentals.MutationLogout, rentals.MutationTarget{}))
		assert.False(t, cache.Has(ctx, rentals.ProfileKey()))
		assert.Equal(t, int64(1), cache.Stats().Flushes)
	})

	t.Run("fetch in flight during invalidation is not stored", func(t *testing.T) {
		t.Parallel()

		cache := newQueryCache()
		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan []byte)

		go func() {
			data, _ := cache.Fetch(ctx, rentals.VehicleKey("1"), 0, func(ctx context.Context) ([]byte, error) {
				close(started)
				<-release

				return []byte("before"), nil
			})
			done <- data
		}()

		<-started
		require.NoError(t, cache.Invalidate(ctx, rentals.VehicleKey("1")))
		close(release)

		assert.Equal(t, []byte("before"), <-done)
		assert.False(t, cache.Has(ctx, rentals.VehicleKey("1")))

		var calls atomic.Int32

		data, err := cache.Fetch(ctx, rentals.VehicleKey("1"), 0, countingFetcher(&calls, "after"))
		require.NoError(t, err)
		assert.Equal(t, []byte("after"), data)
		assert.True(t, cache.Has(ctx, rentals.VehicleKey("1")))
	})
}

// sharedQueryCache is one client's query cache over a redis server other
// clients also use.
func sharedQueryCache(t *testing.T, server *miniredis.Miniredis) *rentals.QueryCache {
	t.Helper()

	backend := rentals.NewRedisCache(&rentals.RedisCacheConfig{
		Client:    redis.NewClient(&redis.Options{Addr: server.Addr()}),
		KeyPrefix: "test:",
	})

	t.Cleanup(func() { _ = backend.Close() })

	return rentals.NewQueryCache(backend, &rentals.CacheOptions{DefaultStaleTime: time.Minute}, nil)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestQueryCache_SharedBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := rentals.VehicleListKey(rentals.NewVehicleQuery().WithCity("Berlin"))

	t.Run("invalidation reaches entries written by another client", func(t *testing.T) {
		t.Parallel()

		server := miniredis.RunT(t)

		var calls atomic.Int32

		_, err := sharedQueryCache(t, server).Fetch(ctx, key, 0, countingFetcher(&calls, "before"))
		require.NoError(t, err)

		require.NoError(t, sharedQueryCache(t, server).InvalidateMutation(ctx, rentals.MutationVehicleCreate, rentals.MutationTarget{}))

		data, err := sharedQueryCache(t, server).Fetch(ctx, key, 0, countingFetcher(&calls, "after"))
		require.NoError(t, err)
		assert.Equal(t, []byte("after"), data)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("a read first served from the backend is still invalidated", func(t *testing.T) {
		t.Parallel()

		server := miniredis.RunT(t)
		cache := sharedQueryCache(t, server)

		var calls atomic.Int32

		_, err := sharedQueryCache(t, server).Fetch(ctx, key, 0, countingFetcher(&calls, "before"))
		require.NoError(t, err)

		data, err := cache.Fetch(ctx, key, 0, countingFetcher(&calls, "unused"))
		require.NoError(t, err)
		assert.Equal(t, []byte("before"), data)
		assert.Equal(t, int64(1), cache.Stats().Hits)

		require.NoError(t, cache.Invalidate(ctx, rentals.VehicleListsKey()))

		data, err = cache.Fetch(ctx, key, 0, countingFetcher(&calls, "after"))
		require.NoError(t, err)
		assert.Equal(t, []byte("after"), data)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("session-scoped reads are not shared between users", func(t *testing.T) {
		t.Parallel()

		server := miniredis.RunT(t)
		alice := sharedQueryCache(t, server)
		bob := sharedQueryCache(t, server)

		var calls atomic.Int32

		for _, key := range []rentals.QueryKey{rentals.ProfileKey(), rentals.MyListingsKey(), rentals.RentalsKey(), rentals.BookingKey("b1")} {
			_, err := alice.Fetch(ctx, key, 0, countingFetcher(&calls, "alice"))
			require.NoError(t, err)
			assert.True(t, alice.Has(ctx, key))
			assert.False(t, server.Exists("test:"+key.String()), key.String())

			data, err := bob.Fetch(ctx, key, 0, countingFetcher(&calls, "bob"))
			require.NoError(t, err)
			assert.Equal(t, []byte("bob"), data)
		}

		assert.Equal(t, int32(8), calls.Load())

		_, err := alice.Fetch(ctx, rentals.VehicleKey("1"), 0, countingFetcher(&calls, "public"))
		require.NoError(t, err)
		assert.True(t, server.Exists("test:"+rentals.VehicleKey("1").String()))

		data, err := bob.Fetch(ctx, rentals.VehicleKey("1"), 0, countingFetcher(&calls, "unused"))
		require.NoError(t, err)
		assert.Equal(t, []byte("public"), data)
		assert.Equal(t, int32(9), calls.Load())

		require.NoError(t, alice.InvalidateMutation(ctx, rentals.MutationProfileUpdate, rentals.MutationTarget{}))
		assert.False(t, alice.Has(ctx, rentals.ProfileKey()))
		assert.True(t, bob.Has(ctx, rentals.ProfileKey()))
	})
}
