package service

import (
	"context"

	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/types"
)

// SharePriceSource fetches a vault's historical price-per-share series
type SharePriceSource interface {
	FetchSeries(ctx context.Context, chainID types.ChainID, vaultAddress string) (map[int64]float64, error)
}

// SharePriceService resolves historical price-per-share for vaults. A
// vault whose series cannot be fetched degrades to an empty series, which
// SharePriceAt then values at 1:1 with the underlying.
type SharePriceService struct {
	source SharePriceSource
}

// NewSharePriceService creates a new share price service
func NewSharePriceService(source SharePriceSource) *SharePriceService {
	return &SharePriceService{source: source}
}

// GetSeries returns the timestamp → price-per-share series for one vault.
// Failures are isolated per vault: the error is logged and an empty
// series returned.
func (s *SharePriceService) GetSeries(ctx context.Context, chainID types.ChainID, vaultAddress string) map[int64]float64 {
	series, err := s.source.FetchSeries(ctx, chainID, vaultAddress)
	if err != nil {
		logging.WithError(err).WithFields(map[string]interface{}{
			"chain_id": chainID,
			"vault":    vaultAddress,
		}).Warn("Failed to fetch share price series, defaulting to 1.0")
		return map[int64]float64{}
	}
	return series
}

// SharePriceAt returns the price per share at an exact timestamp, or 1.0
// when the timestamp is not in the series. Share-price points are sampled
// at the same day boundaries the aggregator asks for, so a miss means the
// feed has no data and 1:1 is the conservative fallback.
func SharePriceAt(series map[int64]float64, timestamp int64) float64 {
	if price, ok := series[timestamp]; ok {
		return price
	}
	return 1.0
}
