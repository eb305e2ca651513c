package resolver

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/eofclient/config"
)

// FromConfig builds the resolver chain selected by cfg.Cache. The returned
// close function releases the Redis client when one was created and is never
// nil.
func FromConfig(cfg config.ResolverConfig) (Resolver, func() error, error) {
	system := NewSystemResolver()
	noop := func() error { return nil }

	switch cfg.Cache {
	case "", "none":
		return system, noop, nil
	case "memory":
		return NewCachingResolver(system, NewMemoryCache(cfg.TTL.Duration, 2*cfg.TTL.Duration), cfg.TTL.Duration), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewCachingResolver(system, NewRedisCache(client, cfg.Redis.KeyPrefix), cfg.TTL.Duration), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown resolver cache %q", cfg.Cache)
	}
}
