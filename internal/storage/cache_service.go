package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vault-holdings/internal/types"
)

// CacheService caches fully computed holdings series in Redis with a
// short TTL so repeated requests within the same minute skip the whole
// valuation pipeline. Every operation is failure-tolerant: Redis being
// unavailable degrades to "always recompute", never to an error.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// seriesKey builds the cache key for a holdings series.
// Format: holdings:<address>:<periodDays>
func (c *CacheService) seriesKey(address string, periodDays int) string {
	return fmt.Sprintf("holdings:%s:%d", strings.ToLower(address), periodDays)
}

// GetSeries returns a cached holdings series, or (nil, false) on miss or
// any cache failure
func (c *CacheService) GetSeries(ctx context.Context, address string, periodDays int) (*types.HoldingsSeries, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, c.seriesKey(address, periodDays))
	if err != nil {
		return nil, false
	}

	var series types.HoldingsSeries
	if err := json.Unmarshal([]byte(data), &series); err != nil {
		return nil, false
	}
	return &series, true
}

// SetSeries caches a computed holdings series; failures are ignored
func (c *CacheService) SetSeries(ctx context.Context, series *types.HoldingsSeries) {
	if c == nil || c.redis == nil || series == nil {
		return
	}

	data, err := json.Marshal(series)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.seriesKey(series.Address, series.PeriodDays), data, c.ttl)
}

// InvalidateAddress removes all cached series for an address. An empty
// address clears every cached series.
func (c *CacheService) InvalidateAddress(ctx context.Context, address string) error {
	if c == nil || c.redis == nil {
		return nil
	}

	pattern := "holdings:*"
	if address != "" {
		pattern = fmt.Sprintf("holdings:%s:*", strings.ToLower(address))
	}

	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to find cached series: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}
