package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache implementation. A Cache over a nil client is valid: reads miss and
// writes are dropped.
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	StatsKey        = "stats:%s:%s"
	SystemHealthKey = "system:health"
	statsKeyPattern = "stats:*"
)

// StatsCacheKey names the cached report for a window; window is an opaque
// caller-built string such as "2025-01-01T00:00:00Z_2025-01-02T00:00:00Z".
func StatsCacheKey(report, window string) string {
	return fmt.Sprintf(StatsKey, report, window)
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// SetJSON stores value under key as JSON.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON loads key into result. It returns ErrCacheMiss when the key is not
// there or the cache is disabled.
func (c *Cache) GetJSON(ctx context.Context, key string, result interface{}) error {
	if !c.Enabled() {
		return ErrCacheMiss
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health interface{}, expiration time.Duration) error {
	return c.SetJSON(ctx, SystemHealthKey, health, expiration)
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context, result interface{}) error {
	return c.GetJSON(ctx, SystemHealthKey, result)
}

// InvalidateStats drops every cached statistics report.
func (c *Cache) InvalidateStats(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.client.Scan(ctx, 0, statsKeyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	c.logger.WithField("keys", len(keys)).Debug("Invalidating cached statistics")
	return c.client.Del(ctx, keys...).Err()
}
