package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vault-holdings/internal/adapter"
	"github.com/vault-holdings/internal/config"
	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/storage"
	"github.com/vault-holdings/internal/types"
)

// PriceOracleSource fetches historical prices for batches of token keys
type PriceOracleSource interface {
	BatchHistorical(ctx context.Context, coins map[string][]int64) (map[string][]adapter.OraclePrice, error)
}

// PriceStore is the persistent price cache consulted before the oracle
type PriceStore interface {
	GetPrices(ctx context.Context, wanted map[string][]int64) (map[string]map[int64]float64, error)
	SavePrices(ctx context.Context, prices []storage.PriceRow) error
}

// TokenRequest identifies one underlying token to price
type TokenRequest struct {
	ChainID types.ChainID
	Address string
}

// PriceService resolves historical USD prices for underlying tokens. It
// serves what it can from the persistent cache, fetches only the gaps
// from the oracle in bounded concurrent batches, and writes fresh prices
// back asynchronously. A failed batch degrades to missing prices for its
// (token, timestamp) pairs; it never fails the request.
type PriceService struct {
	oracle PriceOracleSource
	store  PriceStore
	cfg    config.ValuationConfig
}

// NewPriceService creates a new underlying price service
func NewPriceService(oracle PriceOracleSource, store PriceStore, cfg config.ValuationConfig) *PriceService {
	return &PriceService{
		oracle: oracle,
		store:  store,
		cfg:    cfg,
	}
}

// ResolvePrices returns tokenKey → timestamp → USD price for the
// requested tokens at the requested timestamps. Pairs that could not be
// resolved are absent from the result.
func (s *PriceService) ResolvePrices(ctx context.Context, tokens []TokenRequest, timestamps []int64) map[string]map[int64]float64 {
	result := make(map[string]map[int64]float64)
	if len(tokens) == 0 || len(timestamps) == 0 {
		return result
	}

	wanted := make(map[string][]int64, len(tokens))
	for _, t := range tokens {
		key := types.TokenKey(t.ChainID, t.Address)
		if _, seen := wanted[key]; seen {
			continue
		}
		wanted[key] = timestamps
	}

	if s.store != nil {
		cached, err := s.store.GetPrices(ctx, wanted)
		if err != nil {
			// Cache failures degrade to fetching everything from the oracle.
			logging.WithError(err).Warn("Price cache lookup failed, treating as miss")
		} else {
			for key, series := range cached {
				result[key] = series
			}
		}
	}

	missing := gaps(wanted, result)
	if len(missing) == 0 {
		return result
	}

	fresh := s.fetchFromOracle(ctx, missing)
	var rows []storage.PriceRow
	for key, series := range fresh {
		if result[key] == nil {
			result[key] = make(map[int64]float64, len(series))
		}
		for ts, price := range series {
			result[key][ts] = price
			rows = append(rows, storage.PriceRow{TokenKey: key, Timestamp: ts, Price: price})
		}
	}

	s.writeBack(rows)
	return result
}

// gaps returns the (tokenKey, timestamps) pairs still unresolved after
// the cache pass. Timestamps come back deduplicated and sorted so batch
// composition is deterministic.
func gaps(wanted map[string][]int64, resolved map[string]map[int64]float64) map[string][]int64 {
	missing := make(map[string][]int64)
	for key, timestamps := range wanted {
		have := resolved[key]
		seen := make(map[int64]bool, len(timestamps))
		for _, ts := range timestamps {
			if seen[ts] {
				continue
			}
			seen[ts] = true
			if _, ok := have[ts]; !ok {
				missing[key] = append(missing[key], ts)
			}
		}
		sort.Slice(missing[key], func(i, j int) bool { return missing[key][i] < missing[key][j] })
	}
	for key := range missing {
		if len(missing[key]) == 0 {
			delete(missing, key)
		}
	}
	return missing
}

// priceBatch is one oracle request: a group of token keys crossed with a
// group of timestamps. Every key in the batch requests the same
// timestamp list.
type priceBatch struct {
	keys       []string
	timestamps []int64
}

// fetchFromOracle resolves gaps by splitting them into token × timestamp
// batches and dispatching the batches in bounded concurrent waves with a
// short pause between waves.
func (s *PriceService) fetchFromOracle(ctx context.Context, missing map[string][]int64) map[string]map[int64]float64 {
	batches := s.buildBatches(missing)

	var mu sync.Mutex
	resolved := make(map[string]map[int64]float64)

	waveSize := s.cfg.MaxConcurrentBatches
	if waveSize <= 0 {
		waveSize = 1
	}

	for start := 0; start < len(batches); start += waveSize {
		end := start + waveSize
		if end > len(batches) {
			end = len(batches)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, batch := range batches[start:end] {
			g.Go(func() error {
				series := s.fetchBatch(gctx, batch)
				mu.Lock()
				for key, prices := range series {
					if resolved[key] == nil {
						resolved[key] = make(map[int64]float64, len(prices))
					}
					for ts, price := range prices {
						resolved[key][ts] = price
					}
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // batch failures are absorbed, never propagated

		if end < len(batches) && s.cfg.WavePause > 0 {
			select {
			case <-time.After(s.cfg.WavePause):
			case <-ctx.Done():
				return resolved
			}
		}
	}

	return resolved
}

// buildBatches chunks token keys and timestamps independently and takes
// the cross product, so no single request exceeds the oracle's limits.
// Keys are sorted for deterministic batch composition.
func (s *PriceService) buildBatches(missing map[string][]int64) []priceBatch {
	maxTokens := s.cfg.MaxTokensPerBatch
	if maxTokens <= 0 {
		maxTokens = 1
	}
	maxTimestamps := s.cfg.MaxTimestampsPerBatch
	if maxTimestamps <= 0 {
		maxTimestamps = 1
	}

	keys := make([]string, 0, len(missing))
	tsSet := make(map[int64]bool)
	for key, timestamps := range missing {
		keys = append(keys, key)
		for _, ts := range timestamps {
			tsSet[ts] = true
		}
	}
	sort.Strings(keys)

	allTimestamps := make([]int64, 0, len(tsSet))
	for ts := range tsSet {
		allTimestamps = append(allTimestamps, ts)
	}
	sort.Slice(allTimestamps, func(i, j int) bool { return allTimestamps[i] < allTimestamps[j] })

	var batches []priceBatch
	for k := 0; k < len(keys); k += maxTokens {
		kEnd := k + maxTokens
		if kEnd > len(keys) {
			kEnd = len(keys)
		}
		for t := 0; t < len(allTimestamps); t += maxTimestamps {
			tEnd := t + maxTimestamps
			if tEnd > len(allTimestamps) {
				tEnd = len(allTimestamps)
			}
			batches = append(batches, priceBatch{
				keys:       keys[k:kEnd],
				timestamps: allTimestamps[t:tEnd],
			})
		}
	}
	return batches
}

// fetchBatch performs one oracle request and maps its response back to
// the requested timestamps. The oracle returns prices per key in request
// order, so the i-th returned price belongs to the i-th requested
// timestamp regardless of the timestamp echoed in the response.
func (s *PriceService) fetchBatch(ctx context.Context, batch priceBatch) map[string]map[int64]float64 {
	coins := make(map[string][]int64, len(batch.keys))
	for _, key := range batch.keys {
		coins[key] = batch.timestamps
	}

	response, err := s.oracle.BatchHistorical(ctx, coins)
	if err != nil {
		logging.WithError(err).WithFields(map[string]interface{}{
			"tokens":     len(batch.keys),
			"timestamps": len(batch.timestamps),
		}).Warn("Price oracle batch failed, prices missing for batch")
		return map[string]map[int64]float64{}
	}

	series := make(map[string]map[int64]float64, len(response))
	for key, prices := range response {
		mapped := make(map[int64]float64, len(prices))
		for i, p := range prices {
			if i >= len(batch.timestamps) {
				break
			}
			mapped[batch.timestamps[i]] = p.Price
		}
		if len(mapped) > 0 {
			series[key] = mapped
		}
	}
	return series
}

// writeBack persists freshly fetched prices without blocking the
// request. A failed write costs a refetch later, nothing more.
func (s *PriceService) writeBack(rows []storage.PriceRow) {
	if s.store == nil || len(rows) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.SavePrices(ctx, rows); err != nil {
			logging.WithError(err).Warn("Failed to persist fetched prices")
		}
	}()
}

// PriceAt returns the price at an exact timestamp, falling back to the
// nearest available point by absolute time distance. An empty series
// yields zero, so unpriceable holdings contribute nothing.
func PriceAt(series map[int64]float64, timestamp int64) float64 {
	if price, ok := series[timestamp]; ok {
		return price
	}
	if len(series) == 0 {
		return 0
	}

	var bestTS int64
	bestDiff := int64(math.MaxInt64)
	for ts := range series {
		diff := ts - timestamp
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff || (diff == bestDiff && ts < bestTS) {
			bestDiff = diff
			bestTS = ts
		}
	}
	return series[bestTS]
}
