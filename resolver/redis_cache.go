package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLockTTL     = 10 * time.Second
	redisWaitTimeout = 10 * time.Second
)

// releaseLockScript deletes the lock only if we still own it.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisCache shares resolved addresses between client processes. A miss takes
// a SETNX lock on "<key>:lock" so only one process performs the lookup; the
// others poll until the value appears or the lock is released.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a RedisCache storing keys under prefix.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache := NewRedisCache(client, "eofclient:resolve:")
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// GetOrFetch implements Cache.
func (c *RedisCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) (string, error) {
	fullKey := c.prefix + key

	val, err := c.client.Get(ctx, fullKey).Result()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get error: %w", err)
	}

	lockKey := fullKey + ":lock"
	lockValue := strconv.FormatInt(time.Now().UnixNano(), 10)

	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, redisLockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		return c.waitForValue(ctx, fullKey, lockKey, fetchFn)
	}

	defer c.client.Eval(context.Background(), releaseLockScript, []string{lockKey}, lockValue)

	fetched, err := fetchFn(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch function failed: %w", err)
	}

	if err := c.client.Set(ctx, fullKey, fetched, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to cache result: %w", err)
	}

	return fetched, nil
}

// waitForValue polls with exponential backoff while another process holds the
// lock. If the lock disappears without a value the lookup failed elsewhere and
// we fetch ourselves.
func (c *RedisCache) waitForValue(ctx context.Context, key, lockKey string, fetchFn FetchFunc) (string, error) {
	backoff := 10 * time.Millisecond
	deadline := time.Now().Add(redisWaitTimeout)

	for time.Now().Before(deadline) {
		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("redis get error: %w", err)
		}

		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return "", fmt.Errorf("redis exists error: %w", err)
		}
		if exists == 0 {
			return fetchFn(ctx)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, 500*time.Millisecond)
	}

	return "", errors.New("timeout waiting for cached address")
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
