package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCache is an in-process Cache on go-cache. Concurrent misses for the
// same host share one lookup through singleflight.
type MemoryCache struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCache creates a MemoryCache.
//
// Parameters:
//   - defaultExpiration: TTL used when GetOrFetch is given ttl 0
//   - cleanupInterval: Interval at which expired entries are purged
//
// Returns:
//   - A new MemoryCache
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// GetOrFetch implements Cache.
func (c *MemoryCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) (string, error) {
	if val, found := c.cache.Get(key); found {
		if s, ok := val.(string); ok {
			return s, nil
		}
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have filled the entry while we waited
		if cached, found := c.cache.Get(key); found {
			return cached, nil
		}

		fetched, err := fetchFn(ctx)
		if err != nil {
			return "", err
		}

		if ttl == 0 {
			ttl = cache.DefaultExpiration
		}
		c.cache.Set(key, fetched, ttl)
		return fetched, nil
	})
	if err != nil {
		return "", err
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type in cache for key %s", key)
	}

	return s, nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Delete(key)
	return nil
}

// ItemCount returns the number of cached hosts, expired ones included until
// the next cleanup.
func (c *MemoryCache) ItemCount() int {
	return c.cache.ItemCount()
}
