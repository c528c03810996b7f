package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/linkpulse/internal/metrics"
)

// DefaultTTL is the sliding expiration applied when none is configured.
const DefaultTTL = 24 * time.Hour

const (
	scanCount = 500
	mgetChunk = 200
)

// Cache is a typed Redis cache. Every key is namespaced as
// "{namespace}_{key}" so different entity types never collide, and every
// read refreshes the entry's TTL.
//
// The cache is never authoritative: callers must treat a miss and an error
// alike as a reason to go to the durable store.
type Cache[T any] struct {
	client    redis.Cmdable
	namespace string
	ttl       time.Duration
}

// New creates a cache for values of type T under the given namespace.
func New[T any](client redis.Cmdable, namespace string, ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache[T]{
		client:    client,
		namespace: strings.ToLower(namespace),
		ttl:       ttl,
	}
}

// Key returns the Redis key a natural key is stored under.
func (c *Cache[T]) Key(key string) string {
	return c.namespace + "_" + key
}

// TTL returns the sliding expiration.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Set stores value under key with the default TTL, overwriting any entry.
func (c *Cache[T]) Set(ctx context.Context, key string, value *T) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache[T]) SetWithTTL(ctx context.Context, key string, value *T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.namespace, err)
	}

	if err = c.client.Set(ctx, c.Key(key), data, ttl).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "set").Inc()

		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

// Add stores value under key only when the key is absent and reports
// whether it was written. An existing entry keeps its value and TTL.
func (c *Cache[T]) Add(ctx context.Context, key string, value *T) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", c.namespace, err)
	}

	written, err := c.client.SetNX(ctx, c.Key(key), data, c.ttl).Result()
	if err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "add").Inc()

		return false, fmt.Errorf("cache add: %w", err)
	}

	return written, nil
}

// SetBatch stores all items in one round trip. An item is only written when
// its key is absent, so fresher single-item writes are never clobbered.
// It returns how many items were actually written.
func (c *Cache[T]) SetBatch(ctx context.Context, items []*T, key func(*T) string) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.BoolCmd, 0, len(items))

	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", c.namespace, err)
		}

		cmds = append(cmds, pipe.SetNX(ctx, c.Key(key(item)), data, c.ttl))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "set_batch").Inc()

		return 0, fmt.Errorf("cache set batch: %w", err)
	}

	written := 0

	for _, cmd := range cmds {
		if cmd.Val() {
			written++
		}
	}

	return written, nil
}

// Get returns the value stored under key and refreshes its TTL.
// A miss is reported as ok == false with a nil error.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, bool, error) {
	data, err := c.client.GetEx(ctx, c.Key(key), c.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheMisses.WithLabelValues(c.namespace).Inc()

			return nil, false, nil
		}

		metrics.CacheErrors.WithLabelValues(c.namespace, "get").Inc()

		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var value T
	if err = json.Unmarshal(data, &value); err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "decode").Inc()

		return nil, false, fmt.Errorf("unmarshal %s: %w", c.namespace, err)
	}

	metrics.CacheHits.WithLabelValues(c.namespace).Inc()

	return &value, true, nil
}

// Remove evicts key. Removing an absent key is not an error.
func (c *Cache[T]) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.Key(key)).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "remove").Inc()

		return fmt.Errorf("cache remove: %w", err)
	}

	return nil
}

// GetAll scans the whole namespace. It is O(live keys) and meant for
// diagnostics only; it does not refresh TTLs.
func (c *Cache[T]) GetAll(ctx context.Context) ([]*T, error) {
	keys := make([]string, 0)

	iter := c.client.Scan(ctx, 0, c.namespace+"_*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		metrics.CacheErrors.WithLabelValues(c.namespace, "scan").Inc()

		return nil, fmt.Errorf("cache scan: %w", err)
	}

	values := make([]*T, 0, len(keys))

	for start := 0; start < len(keys); start += mgetChunk {
		end := min(start+mgetChunk, len(keys))

		raw, err := c.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			metrics.CacheErrors.WithLabelValues(c.namespace, "mget").Inc()

			return nil, fmt.Errorf("cache mget: %w", err)
		}

		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				// expired between SCAN and MGET
				continue
			}

			var value T
			if err := json.Unmarshal([]byte(s), &value); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", c.namespace, err)
			}

			values = append(values, &value)
		}
	}

	return values, nil
}

// Shutdown is a no-op; the Redis client is owned by the container.
func (c *Cache[T]) Shutdown() error {
	return nil
}
