package rentals

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the current value of a read from its origin service.
type Fetcher func(ctx context.Context) ([]byte, error)

// QueryCacheStats counts cache outcomes.
type QueryCacheStats struct {
	Hits    int64
	Misses  int64
	Shared  int64
	Flushes int64
}

// QueryCache serves reads from a Cache backend, deduplicates identical
// in-flight reads and drops entries when a mutation invalidates them.
//
// Each key carries a generation. Invalidation bumps it, so a fetch that began
// before the invalidation neither stores its result nor is joined by readers
// arriving afterwards.
//
// Session-scoped reads never reach a shared backend: they are kept in a
// process-local cache instead.
type QueryCache struct {
	backend   Cache
	private   Cache
	logger    Logger
	staleTime time.Duration
	group     singleflight.Group

	mu          sync.Mutex
	keys        map[string]QueryKey
	generations map[string]uint64

	hits    atomic.Int64
	misses  atomic.Int64
	shared  atomic.Int64
	flushes atomic.Int64
}

// NewQueryCache wraps backend. Nil options mean DefaultCacheOptions().
func NewQueryCache(backend Cache, options *CacheOptions, logger Logger) *QueryCache {
	if backend == nil {
		backend = NewNoOpCache()
	}

	if options == nil {
		options = DefaultCacheOptions()
	}

	if logger == nil {
		logger = NopLogger{}
	}

	private := backend
	if isShared(backend) {
		private = NewMemoryCache(constants.DefaultCacheSize)
	}

	return &QueryCache{
		backend:     backend,
		private:     private,
		logger:      logger,
		staleTime:   options.DefaultStaleTime,
		keys:        make(map[string]QueryKey),
		generations: make(map[string]uint64),
	}
}

// Fetch returns the cached value for key when it is still fresh, otherwise it
// calls fetch once for all concurrent callers of the same key and stores the
// result for staleTime (the cache default when zero).
func (c *QueryCache) Fetch(ctx context.Context, key QueryKey, staleTime time.Duration, fetch Fetcher) ([]byte, error) {
	id := key.String()
	generation := c.track(id, key)

	entry, err := c.storeFor(key).Get(ctx, id)
	if err == nil {
		c.hits.Add(1)

		return entry.Data, nil
	}

	c.misses.Add(1)

	value, err, shared := c.group.Do(id+"#"+strconv.FormatUint(generation, 10), func() (interface{}, error) {
		data, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		c.store(ctx, key, generation, data, staleTime)

		return data, nil
	})
	if shared {
		c.shared.Add(1)
	}

	if err != nil {
		return nil, err
	}

	data, _ := value.([]byte)

	return data, nil
}

// Invalidate drops every entry under any of the given prefixes, including
// entries other processes wrote to a shared backend. The empty key clears the
// whole backend.
func (c *QueryCache) Invalidate(ctx context.Context, prefixes ...QueryKey) error {
	for _, prefix := range prefixes {
		if len(prefix) == 0 {
			return c.Clear(ctx)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, key := range c.keys {
		if matchesAny(key, prefixes) {
			c.generations[id]++
		}
	}

	var errs []error

	for _, prefix := range prefixes {
		for _, store := range c.stores() {
			err := store.DeletePrefix(ctx, prefix.String())
			if err != nil {
				errs = append(errs, err)
			}
		}

		c.logger.Debug("Cache entries invalidated", map[string]interface{}{"prefix": prefix.String()})
	}

	return errors.Join(errs...)
}

// InvalidateMutation drops the reads a successful mutation made stale.
func (c *QueryCache) InvalidateMutation(ctx context.Context, mutation Mutation, target MutationTarget) error {
	keys := Invalidations(mutation, target)
	if len(keys) == 0 {
		return nil
	}

	return c.Invalidate(ctx, keys...)
}

// Clear drops every entry.
func (c *QueryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.keys {
		c.generations[id]++
	}

	c.flushes.Add(1)
	c.logger.Debug("Cache cleared", nil)

	var errs []error

	for _, store := range c.stores() {
		err := store.Clear(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Has reports whether a fresh value is cached for key.
func (c *QueryCache) Has(ctx context.Context, key QueryKey) bool {
	return c.storeFor(key).Has(ctx, key.String())
}

func (c *QueryCache) storeFor(key QueryKey) Cache {
	if key.SessionScoped() {
		return c.private
	}

	return c.backend
}

func (c *QueryCache) stores() []Cache {
	if c.private == c.backend {
		return []Cache{c.backend}
	}

	return []Cache{c.backend, c.private}
}

// Stats returns the cache counters.
func (c *QueryCache) Stats() QueryCacheStats {
	return QueryCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Shared:  c.shared.Load(),
		Flushes: c.flushes.Load(),
	}
}

func (c *QueryCache) track(id string, key QueryKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[id]; !ok {
		c.keys[id] = key
	}

	return c.generations[id]
}

func (c *QueryCache) store(ctx context.Context, key QueryKey, generation uint64, data []byte, staleTime time.Duration) {
	if staleTime <= 0 {
		staleTime = c.staleTime
	}

	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[id] != generation {
		return
	}

	now := time.Now()

	err := c.storeFor(key).Set(ctx, id, &CacheEntry{
		Data:      data,
		FetchedAt: now,
		ExpiresAt: now.Add(staleTime),
	})
	if err != nil {
		c.logger.Warn("Failed to store cache entry", map[string]interface{}{
			"key":   id,
			"error": err.Error(),
		})
	}
}

func matchesAny(key QueryKey, prefixes []QueryKey) bool {
	for _, prefix := range prefixes {
		if key.HasPrefix(prefix) {
			return true
		}
	}

	return false
}
