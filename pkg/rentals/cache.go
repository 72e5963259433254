package rentals

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound  = errors.New("key not found")
	ErrCacheEntryExpired = errors.New("entry expired")
)

// Cache is a pluggable storage backend for cached responses.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
	// DeletePrefix removes key prefix and every key below it. Keys are
	// rendered QueryKeys, so "vehicles/list" covers "vehicles/list/a" but
	// not "vehicles/listing".
	DeletePrefix(ctx context.Context, prefix string) error
}

// keyHasPrefix matches rendered keys part-wise, like QueryKey.HasPrefix.
func keyHasPrefix(key, prefix string) bool {
	return prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/")
}

// isShared reports whether other processes can read what backend stores.
func isShared(backend Cache) bool {
	shared, ok := backend.(interface{ Shared() bool })

	return ok && shared.Shared()
}

// CacheEntry is a keyed snapshot of a server response.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the staleness window has passed.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// TTL returns the remaining freshness of the entry, or zero if it has none.
func (e *CacheEntry) TTL() time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}

	return time.Until(e.ExpiresAt)
}

// CacheOptions are applied to any backend.
type CacheOptions struct {
	// DefaultStaleTime is used when a read does not name its own.
	DefaultStaleTime time.Duration
	// KeyPrefix namespaces keys in shared backends.
	KeyPrefix string
}

// DefaultCacheOptions returns default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultStaleTime: constants.DefaultStaleTime,
		KeyPrefix:        constants.DefaultCacheKeyPrefix,
	}
}

// MemoryCache is a bounded in-process cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry for key.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if entry.Expired() {
		return nil, ErrCacheEntryExpired
	}

	return entry, nil
}

// Set stores entry under key, evicting when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

// evictLocked drops expired entries, or the one closest to expiry if none are.
func (c *MemoryCache) evictLocked() {
	var (
		victim   string
		earliest time.Time
	)

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)

			continue
		}

		if victim == "" || entry.ExpiresAt.Before(earliest) {
			victim = key
			earliest = entry.ExpiresAt
		}
	}

	if len(c.entries) >= c.maxSize && victim != "" {
		delete(c.entries, victim)
	}
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()

	return nil
}

// DeletePrefix removes every key under prefix.
func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if keyHasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}

	return nil
}

// Has reports whether a fresh entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
