package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"election-system/pkg/config"
	"election-system/pkg/logger"
)

// ResultsCache is a best-effort read-through cache backed by Redis. Every
// failure degrades to a cache miss; the caller recomputes and the system
// works without Redis entirely.
type ResultsCache struct {
	client *redis.Client
	log    *logger.Logger
}

// New connects to Redis and verifies the connection. Returns nil without
// error when the cache is disabled in configuration.
func New(cfg *config.RedisConfig, log *logger.Logger) (*ResultsCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &ResultsCache{client: client, log: log.WithComponent("cache")}, nil
}

// Get loads a cached value into dest. A false return means miss, expired, or
// any Redis failure.
func (c *ResultsCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warning("Cache read failed - key: %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warning("Cache entry corrupt - key: %s: %v", key, err)
		return false
	}
	return true
}

// Set stores a value with a TTL. Failures are logged and swallowed.
func (c *ResultsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warning("Cache write failed - key: %s: %v", key, err)
	}
}

// Invalidate drops a cached entry.
func (c *ResultsCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warning("Cache invalidation failed - key: %s: %v", key, err)
	}
}

// Close releases the Redis connection.
func (c *ResultsCache) Close() error {
	return c.client.Close()
}
