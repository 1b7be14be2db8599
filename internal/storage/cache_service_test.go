package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-holdings/internal/types"
)

func newTestCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheService(NewRedisCacheFromClient(client), time.Minute), mr
}

func testSeries(address string, periodDays int) *types.HoldingsSeries {
	return &types.HoldingsSeries{
		Address:    address,
		PeriodDays: periodDays,
		DataPoints: []types.HoldingsPoint{
			{Date: "2026-03-14", Timestamp: 1773446400, TotalUSDValue: 123.45},
			{Date: "2026-03-15", Timestamp: 1773532800, TotalUSDValue: 130.00},
		},
	}
}

func TestCacheService_RoundTrip(t *testing.T) {
	cache, _ := newTestCacheService(t)
	ctx := context.Background()

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok, "empty cache misses")

	cache.SetSeries(ctx, testSeries("0xabc", 30))

	got, ok := cache.GetSeries(ctx, "0xabc", 30)
	require.True(t, ok)
	assert.Equal(t, "0xabc", got.Address)
	require.Len(t, got.DataPoints, 2)
	assert.Equal(t, 123.45, got.DataPoints[0].TotalUSDValue)

	// Different period is a different key.
	_, ok = cache.GetSeries(ctx, "0xabc", 7)
	assert.False(t, ok)
}

func TestCacheService_AddressCaseInsensitive(t *testing.T) {
	cache, _ := newTestCacheService(t)
	ctx := context.Background()

	cache.SetSeries(ctx, testSeries("0xABC", 30))

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.True(t, ok)
}

func TestCacheService_InvalidateAddress(t *testing.T) {
	cache, _ := newTestCacheService(t)
	ctx := context.Background()

	cache.SetSeries(ctx, testSeries("0xabc", 30))
	cache.SetSeries(ctx, testSeries("0xabc", 7))
	cache.SetSeries(ctx, testSeries("0xdef", 30))

	require.NoError(t, cache.InvalidateAddress(ctx, "0xabc"))

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok)
	_, ok = cache.GetSeries(ctx, "0xabc", 7)
	assert.False(t, ok)
	_, ok = cache.GetSeries(ctx, "0xdef", 30)
	assert.True(t, ok, "other addresses survive a scoped invalidation")
}

func TestCacheService_InvalidateAll(t *testing.T) {
	cache, _ := newTestCacheService(t)
	ctx := context.Background()

	cache.SetSeries(ctx, testSeries("0xabc", 30))
	cache.SetSeries(ctx, testSeries("0xdef", 30))

	require.NoError(t, cache.InvalidateAddress(ctx, ""))

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok)
	_, ok = cache.GetSeries(ctx, "0xdef", 30)
	assert.False(t, ok)
}

func TestCacheService_Expiry(t *testing.T) {
	cache, mr := newTestCacheService(t)
	ctx := context.Background()

	cache.SetSeries(ctx, testSeries("0xabc", 30))
	mr.FastForward(2 * time.Minute)

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok, "entries expire after the TTL")
}

func TestCacheService_DownRedisDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCacheService(NewRedisCacheFromClient(client), time.Minute)
	mr.Close()

	ctx := context.Background()
	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok, "a dead Redis is a miss, not an error")
	cache.SetSeries(ctx, testSeries("0xabc", 30)) // must not panic
}

func TestCacheService_NilSafe(t *testing.T) {
	var cache *CacheService
	ctx := context.Background()

	_, ok := cache.GetSeries(ctx, "0xabc", 30)
	assert.False(t, ok)
	cache.SetSeries(ctx, testSeries("0xabc", 30))
	assert.NoError(t, cache.InvalidateAddress(ctx, "0xabc"))
}
