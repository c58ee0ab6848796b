package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the read accelerator in front of postgres. Never authoritative:
// reads populate it lazily on miss, writes only invalidate it.
type Cache struct {
	R *redis.Client
}

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// Get returns the cached value and whether it was present. A deleted or
// expired entry is a miss, never an error.
func (c *Cache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	b, err := c.R.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Cache) Set(ctx context.Context, key Key, val []byte, ttl time.Duration) error {
	return c.R.Set(ctx, string(key), val, ttl).Err()
}

// Invalidate deletes the given keys. Deleting an absent key is a no-op,
// so concurrent writers can issue invalidations without coordinating.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = string(k)
	}
	return c.R.Del(ctx, ks...).Err()
}

// InvalidatePattern scans for keys matching pattern and deletes them.
// Used for bulk list-key invalidation after a mutation.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := c.R.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.R.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
