package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// CacheTTL is the lifetime of every read-through entry.
const CacheTTL = 30 * time.Minute

// Cache stores JSON snapshots of entities. Implementations must be safe for concurrent use.
type Cache interface {
	// Get decodes the value stored at key into dst and reports whether the key was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func CacheKeyBlog(id uuid.UUID) string {
	return "Blog_" + id.String()
}

func CacheKeyUser(id uuid.UUID) string {
	return "User_" + id.String()
}

// MemoryCache is an in-process Cache. Values are kept serialized so callers never share memory with the cache.
type MemoryCache struct {
	*cache.Cache
}

func NewMemoryCache(expirationTime, cleanupTime time.Duration) *MemoryCache {
	return &MemoryCache{cache.New(expirationTime, cleanupTime)}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := c.Cache.Get(key)
	if !ok {
		return false, nil
	}

	b, ok := v.([]byte)
	if !ok {
		return false, fmt.Errorf("unexpected cache value type %T for key %s", v, key)
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("could not decode cache value: %w", err)
	}

	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode cache value: %w", err)
	}

	c.Cache.Set(key, b, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.Cache.Delete(key)
	return nil
}

func (c *MemoryCache) Flush() {
	c.Cache.Flush()
}

// RedisCache is the distributed Cache shared by every API and consumer process.
type RedisCache struct {
	rc *redis.Client
}

// NewRedisCache connects to addr and verifies the server answers a ping.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis: address is empty")
	}

	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrCacheUnavailable, err)
	}

	return &RedisCache{rc: rc}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	result, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: get %s: %v", ErrCacheUnavailable, key, err)
	}

	if err := json.Unmarshal(result, dst); err != nil {
		return false, fmt.Errorf("could not decode cache value: %w", err)
	}

	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode cache value: %w", err)
	}

	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrCacheUnavailable, key, err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rc.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrCacheUnavailable, key, err)
	}

	return nil
}

// TTL returns the remaining lifetime of key.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rc.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl %s: %v", ErrCacheUnavailable, key, err)
	}

	return d, nil
}

func (c *RedisCache) Close() error {
	return c.rc.Close()
}

// Evict deletes key after a store mutation. The returned error always matches ErrCacheUnavailable.
func Evict(ctx context.Context, c Cache, key string) error {
	if err := c.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrCacheUnavailable) {
			return err
		}
		return fmt.Errorf("%w: evict %s: %v", ErrCacheUnavailable, key, err)
	}

	return nil
}
