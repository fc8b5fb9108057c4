package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const listKey = "catalog:products"

func productKey(id string) string { return "catalog:product:" + id }

// Cache keeps the product list and single products in Redis. Concurrent misses
// on one key share a single store read.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache constructs a cache. A nil client or non-positive ttl disables it.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// evict drops the list and any given products.
func (c *Cache) evict(ctx context.Context, ids ...string) error {
	if !c.enabled() {
		return nil
	}
	keys := []string{listKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// cached reads key from Redis, falling back to fetch and storing its result.
// Redis problems are logged and never fail the read.
func cached[T any](ctx context.Context, c *Cache, log zerolog.Logger, key string, fetch func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return fetch(ctx)
	}
	var out T
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		log.Warn().Str("key", key).Msg("catalog_cache_corrupt")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("catalog_cache_read_failed")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(val); err == nil {
			if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				log.Warn().Err(err).Msg("catalog_cache_write_failed")
			}
		}
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}
