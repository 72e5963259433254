package rentals

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeRedis represents a shared Redis cache.
	CacheTypeRedis CacheType = "redis"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrRedisConfigRequired   = errors.New("redis configuration required for redis cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig selects the query cache backend.
type CacheConfig struct {
	Type CacheType

	Memory *MemoryCacheConfig
	Redis  *RedisCacheConfig
	NATS   *NATSKVConfig

	// Tiered fronts a shared backend (redis, nats) with a memory cache, so
	// repeated reads inside one process skip the network.
	Tiered bool

	// Options applies to every backend. Nil means DefaultCacheOptions().
	Options *CacheOptions
}

// MemoryCacheConfig bounds the in-process cache.
type MemoryCacheConfig struct {
	MaxSize int
}

// DefaultCacheConfig returns a memory cache with default bounds.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:    CacheTypeMemory,
		Memory:  &MemoryCacheConfig{MaxSize: constants.DefaultCacheSize},
		Options: DefaultCacheOptions(),
	}
}

// NewCacheFromConfig creates the backend described by config. A nil config
// yields the default memory cache.
func NewCacheFromConfig(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	var shared Cache

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCacheFromConfig(config.Memory), nil
	case CacheTypeNone:
		return NewNoOpCache(), nil
	case CacheTypeRedis:
		if config.Redis == nil {
			return nil, ErrRedisConfigRequired
		}

		redisConfig := *config.Redis
		if redisConfig.KeyPrefix == "" && config.Options != nil {
			redisConfig.KeyPrefix = config.Options.KeyPrefix
		}

		shared = NewRedisCache(&redisConfig)
	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		kv, err := NewNATSKVCache(ctx, config.NATS)
		if err != nil {
			return nil, err
		}

		shared = kv
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}

	if config.Tiered {
		return NewCacheChain(NewMemoryCacheFromConfig(config.Memory), shared), nil
	}

	return shared, nil
}

// NewMemoryCacheFromConfig creates a memory cache; nil config uses the default size.
func NewMemoryCacheFromConfig(config *MemoryCacheConfig) *MemoryCache {
	if config == nil {
		return NewMemoryCache(constants.DefaultCacheSize)
	}

	return NewMemoryCache(config.MaxSize)
}

// NoOpCache stores nothing. Every read is a miss, so each query goes to the
// network.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always misses.
func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error { return nil }

func (c *NoOpCache) Delete(ctx context.Context, key string) error { return nil }

func (c *NoOpCache) Clear(ctx context.Context) error { return nil }

func (c *NoOpCache) Has(ctx context.Context, key string) bool { return false }

func (c *NoOpCache) DeletePrefix(ctx context.Context, prefix string) error { return nil }

// CacheChain layers backends from nearest to farthest. Reads stop at the
// first hit and backfill the nearer levels; writes and invalidations reach
// every level.
type CacheChain struct {
	levels []Cache
}

// NewCacheChain creates a chain; levels[0] is consulted first.
func NewCacheChain(levels ...Cache) *CacheChain {
	return &CacheChain{levels: levels}
}

// Get returns the entry from the nearest level holding it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, level := range c.levels {
		entry, err := level.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, nearer := range c.levels[:i] {
			_ = nearer.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(level Cache) error { return level.Set(ctx, key, entry) })
}

func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(level Cache) error { return level.Delete(ctx, key) })
}

func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(level Cache) error { return level.Clear(ctx) })
}

func (c *CacheChain) DeletePrefix(ctx context.Context, prefix string) error {
	return c.each(func(level Cache) error { return level.DeletePrefix(ctx, prefix) })
}

// Shared reports whether any level is visible to other processes.
func (c *CacheChain) Shared() bool {
	for _, level := range c.levels {
		if isShared(level) {
			return true
		}
	}

	return false
}

// Has reports whether any level holds key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, level := range c.levels {
		if level.Has(ctx, key) {
			return true
		}
	}

	return false
}

// Close closes every level that holds a connection.
func (c *CacheChain) Close() error {
	return c.each(func(level Cache) error {
		if closer, ok := level.(io.Closer); ok {
			return closer.Close()
		}

		return nil
	})
}

// each applies fn to every level, collecting failures.
func (c *CacheChain) each(fn func(Cache) error) error {
	var errs []error

	for _, level := range c.levels {
		err := fn(level)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
