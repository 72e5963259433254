package rentals

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNATSBucketRequired is returned when no KV bucket name is configured.
var ErrNATSBucketRequired = errors.New("NATS KV bucket name is required")

// NATSKVConfig configures the NATS JetStream key-value backend.
type NATSKVConfig struct {
	URL    string
	Bucket string
	// TTL caps how long the bucket keeps any value.
	TTL time.Duration
	// Conn, when set, is used instead of dialing URL.
	Conn *nats.Conn
}

// NATSKVCache stores cached responses in a JetStream KV bucket.
type NATSKVCache struct {
	conn  *nats.Conn
	owned bool
	kv    jetstream.KeyValue
}

// NewNATSKVCache connects to NATS and creates or binds the bucket.
func NewNATSKVCache(ctx context.Context, config *NATSKVConfig) (*NATSKVCache, error) {
	if config.Bucket == "" {
		return nil, ErrNATSBucketRequired
	}

	conn := config.Conn
	owned := false

	if conn == nil {
		url := config.URL
		if url == "" {
			url = nats.DefaultURL
		}

		var err error

		conn, err = nats.Connect(url, nats.Name(constants.DefaultUserAgent))
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}

		owned = true
	}

	js, err := jetstream.New(conn)
	if err != nil {
		closeOwned(conn, owned)

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: "rentals client response cache",
		TTL:         config.TTL,
	})
	if err != nil {
		closeOwned(conn, owned)

		return nil, fmt.Errorf("binding KV bucket %s: %w", config.Bucket, err)
	}

	return &NATSKVCache{conn: conn, owned: owned, kv: kv}, nil
}

func closeOwned(conn *nats.Conn, owned bool) {
	if owned {
		conn.Close()
	}
}

// natsKey maps arbitrary cache keys onto the KV key alphabet.
func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get returns the entry for key.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrCacheKeyNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kvEntry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}

	if entry.Expired() {
		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// Set stores entry under key.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	_, err = c.kv.Put(ctx, natsKey(key), data)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// Delete removes key.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting cache entry: %w", err)
	}

	return nil
}

// Clear removes every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	return c.deleteWhere(ctx, func(string) bool { return true })
}

// DeletePrefix removes every key under prefix. KV keys are encoded, so the
// bucket's keys are listed and matched after decoding.
func (c *NATSKVCache) DeletePrefix(ctx context.Context, prefix string) error {
	return c.deleteWhere(ctx, func(kvKey string) bool {
		key, err := base64.RawURLEncoding.DecodeString(kvKey)

		return err == nil && keyHasPrefix(string(key), prefix)
	})
}

func (c *NATSKVCache) deleteWhere(ctx context.Context, match func(kvKey string) bool) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing cache keys: %w", err)
	}

	defer func() { _ = lister.Stop() }()

	for key := range lister.Keys() {
		if !match(key) {
			continue
		}

		err = c.kv.Delete(ctx, key)
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}

	return nil
}

// Has reports whether a fresh entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Shared reports that entries are visible to other processes.
func (c *NATSKVCache) Shared() bool { return true }

// Close drains the connection if the cache dialed it.
func (c *NATSKVCache) Close() error {
	if !c.owned {
		return nil
	}

	err := c.conn.Drain()
	if err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}
