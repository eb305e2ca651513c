package resolver

import (
	"context"
	"fmt"
	"net"
	"time"
)

// FetchFunc produces the value for a cache miss.
type FetchFunc func(ctx context.Context) (string, error)

// Cache stores resolved addresses keyed by host name. Implementations make
// sure concurrent misses for one key run fetchFn once.
type Cache interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn and
	// stores its result for ttl.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key
	//   - ttl: Time-to-live for a fetched value
	//   - fetchFn: Called on a miss
	//
	// Returns:
	//   - The cached or fetched value
	//   - An error if the cache or fetchFn fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) (string, error)

	// Delete removes key from the cache.
	Delete(ctx context.Context, key string) error
}

// CachingResolver answers from a Cache and falls back to Next on a miss.
type CachingResolver struct {
	Next  Resolver
	Cache Cache
	TTL   time.Duration
}

// NewCachingResolver wraps next with cache.
func NewCachingResolver(next Resolver, cache Cache, ttl time.Duration) *CachingResolver {
	return &CachingResolver{Next: next, Cache: cache, TTL: ttl}
}

// Resolve implements Resolver.
func (r *CachingResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	val, err := r.Cache.GetOrFetch(ctx, host, r.TTL, func(ctx context.Context) (string, error) {
		ip, err := r.Next.Resolve(ctx, host)
		if err != nil {
			return "", err
		}
		return ip.String(), nil
	})
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(val)
	if ip == nil {
		_ = r.Cache.Delete(ctx, host)
		return nil, fmt.Errorf("cached address %q for %q is not an IP", val, host)
	}

	return ip, nil
}
