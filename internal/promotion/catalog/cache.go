package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"promotions/internal/promotion/metrics"
	"promotions/internal/promotion/models"
	pstrings "promotions/pkg/platform/strings"
)

const (
	defaultCacheTTL = 5 * time.Minute
	cacheKeyPrefix  = "promotions:product:"
)

// Source is any product lookup the cache can sit in front of.
type Source interface {
	Products(ctx context.Context, productIDs []string) (models.Catalog, error)
}

// RedisCache serves products from Redis and asks the next source for misses.
// Cache failures degrade to the next source.
type RedisCache struct {
	client  redis.UniversalClient
	next    Source
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithTTL sets how long products stay cached.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheMetrics records hits and misses.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

// WithCacheLogger sets the cache logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// NewRedisCache wraps next with a Redis product cache.
func NewRedisCache(client redis.UniversalClient, next Source, opts ...CacheOption) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if next == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	c := &RedisCache{
		client: client,
		next:   next,
		ttl:    defaultCacheTTL,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *RedisCache) Products(ctx context.Context, productIDs []string) (models.Catalog, error) {
	ids := pstrings.DedupeAndTrim(productIDs)
	catalog := make(models.Catalog, len(ids))
	if len(ids) == 0 {
		return catalog, nil
	}

	start := time.Now()
	missing := c.readCached(ctx, ids, catalog)
	c.metrics.ObserveCatalogLatency("cache", time.Since(start))
	c.metrics.IncrementCacheHit(len(ids) - len(missing))
	c.metrics.IncrementCacheMiss(len(missing))
	if len(missing) == 0 {
		return catalog, nil
	}

	fetched, err := c.next.Products(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		catalog[id] = p
	}
	c.write(ctx, fetched)
	return catalog, nil
}

// readCached fills catalog from Redis and returns the ids it could not serve.
func (c *RedisCache) readCached(ctx context.Context, ids []string, catalog models.Catalog) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKeyPrefix + id
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "product cache read failed", "error", err)
		return ids
	}

	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var p models.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		catalog[ids[i]] = p
	}
	return missing
}

func (c *RedisCache) write(ctx context.Context, products models.Catalog) {
	if len(products) == 0 {
		return
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, p := range products {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode product %s: %w", id, err)
			}
			pipe.Set(ctx, cacheKeyPrefix+id, data, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "product cache write failed", "error", err)
	}
}
