package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyHistoricalPrice is for per-date closing prices
	CacheKeyHistoricalPrice CacheKeyType = "histprice"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(param))
	}
	return strings.Join(parts, ":")
}

// HistoricalPriceCache remembers past-date prices so repeated lookups do
// not spend price source quota. Past prices are immutable, so entries are
// only ever written once per TTL.
type HistoricalPriceCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// cachedHistoricalPrice is the stored value
type cachedHistoricalPrice struct {
	Price    float64   `json:"price"`
	CachedAt time.Time `json:"cachedAt"`
}

// NewHistoricalPriceCache creates a new cache over redis
func NewHistoricalPriceCache(redis *RedisCache, ttl time.Duration) *HistoricalPriceCache {
	return &HistoricalPriceCache{
		redis: redis,
		ttl:   ttl,
	}
}

// Key returns the cache key for an instance and date
// Format: histprice:<instance>:<date>
func (c *HistoricalPriceCache) Key(instanceID, date string) string {
	return GenerateCacheKey(CacheKeyHistoricalPrice, instanceID, date)
}

// Get returns the cached price for date, if any
func (c *HistoricalPriceCache) Get(ctx context.Context, instanceID, date string) (float64, bool, error) {
	data, err := c.redis.Get(ctx, c.Key(instanceID, date))
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get from cache: %w", err)
	}

	var cached cachedHistoricalPrice
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return cached.Price, true, nil
}

// Set stores the price for date
func (c *HistoricalPriceCache) Set(ctx context.Context, instanceID, date string, price float64) error {
	data, err := json.Marshal(cachedHistoricalPrice{Price: price, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, c.Key(instanceID, date), data, c.ttl)
}
