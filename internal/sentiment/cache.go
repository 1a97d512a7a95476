package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "sentiment:version"

// Cache is a versioned redis cache for backend aggregates. Invalidation is
// a version bump, so stale entries simply fall out of addressability and
// expire on their own TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// version returns the current cache version, initialising when missing.
func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// statsKey composes the stats cache key with the current version.
func (c *Cache) statsKey(ctx context.Context) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sentiment:stats:%d", ver), nil
}

// FetchStats loads the cached stats document or populates it using the
// loader. A cache failure degrades to a direct backend call rather than
// failing the request.
func (c *Cache) FetchStats(ctx context.Context, loader func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.statsKey(ctx)
	if err != nil {
		return loader(ctx)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.client.Set(ctx, key, []byte(value), c.ttl).Err()
	return value, nil
}

// Bump invalidates all cached aggregates by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
