package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a read-through response cache keyed per entity kind, tenant
// and id.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewClient opens a redis client from cfg.
func NewClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisCache wraps client. A zero TTL falls back to five minutes.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "osgb"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient exposes the underlying client for pub/sub.
func (c *RedisCache) GetClient() *redis.Client {
	return c.client
}

// Key builds the cache key for one entity.
func (c *RedisCache) Key(kind string, tenantID, id uint) string {
	return fmt.Sprintf("%s:cache:%s:%d:%d", c.prefix, kind, tenantID, id)
}

// Get loads a cached value into dest. A miss returns false with no error.
func (c *RedisCache) Get(ctx context.Context, kind string, tenantID, id uint, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.Key(kind, tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores value under (kind, tenant, id) for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, kind string, tenantID, id uint, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, c.Key(kind, tenantID, id), data, c.ttl).Err()
}

// Invalidate drops the entry for (kind, tenant, id).
func (c *RedisCache) Invalidate(ctx context.Context, kind string, tenantID, id uint) error {
	return c.client.Del(ctx, c.Key(kind, tenantID, id)).Err()
}
