package rentals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/redis/go-redis/v9"
)

// RedisCacheConfig configures the redis backend. Client, when set, is used
// as-is and the connection fields are ignored.
type RedisCacheConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	Client    *redis.Client
}

// RedisCache shares cached responses between processes through redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(config *RedisCacheConfig) *RedisCache {
	client := config.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Username: config.Username,
			Password: config.Password,
			DB:       config.DB,
		})
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = constants.DefaultCacheKeyPrefix
	}

	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

// Get returns the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheKeyNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}

	if entry.Expired() {
		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// Set stores entry with a redis TTL matching its staleness window.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	ttl := entry.TTL()
	if ttl < 0 {
		return nil
	}

	err = c.client.Set(ctx, c.key(key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.key(key)).Err()
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}

	return nil
}

// Clear removes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.DeletePrefix(ctx, "")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// DeletePrefix removes every key under prefix, whichever process wrote it.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := globEscaper.Replace(c.key(prefix)) + "*"
	iter := c.client.Scan(ctx, 0, pattern, constants.RedisScanCount).Iterator()

	var keys []string

	for iter.Next(ctx) {
		if keyHasPrefix(strings.TrimPrefix(iter.Val(), c.prefix), prefix) {
			keys = append(keys, iter.Val())
		}
	}

	err := iter.Err()
	if err != nil {
		return fmt.Errorf("scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	err = c.client.Del(ctx, keys...).Err()
	if err != nil {
		return fmt.Errorf("deleting cache entries: %w", err)
	}

	return nil
}

// Has reports whether a fresh entry exists for key.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Shared reports that entries are visible to other processes.
func (c *RedisCache) Shared() bool { return true }

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
