// Package cache provides a Redis-backed JSON cache. A Cache built from an
// empty URL is disabled: every Get misses and every Set is a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or caching is disabled.
var ErrMiss = errors.New("cache: miss")

type Cache struct {
	client    *redis.Client
	keyPrefix string
}

type Config struct {
	URL       string
	KeyPrefix string
}

// New connects to Redis at cfg.URL and pings it.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "jeev"
	}
	if cfg.URL == "" {
		return &Cache{keyPrefix: prefix}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{client: client, keyPrefix: prefix}, nil
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

func (c *Cache) key(parts ...string) string {
	return c.keyPrefix + ":" + strings.Join(parts, ":")
}

// Get decodes the cached value at key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set stores value at key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
