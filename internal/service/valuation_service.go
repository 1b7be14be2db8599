package service

import (
	"context"
	"math"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vault-holdings/internal/errors"
	"github.com/vault-holdings/internal/ledger"
	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/types"
)

// EventSource fetches the raw on-chain event streams for one user
type EventSource interface {
	GetDeposits(ctx context.Context, address string) ([]types.DepositEvent, error)
	GetWithdrawals(ctx context.Context, address string) ([]types.WithdrawEvent, error)
	GetTransfersIn(ctx context.Context, address string) ([]types.TransferEvent, error)
	GetTransfersOut(ctx context.Context, address string) ([]types.TransferEvent, error)
}

// TotalsStore is the persistent per-day valuation cache
type TotalsStore interface {
	GetTotals(ctx context.Context, address, startDate, endDate string) ([]types.DailyTotal, error)
	SaveTotals(ctx context.Context, address string, totals []types.DailyTotal) error
	Clear(ctx context.Context, address string) error
}

// MetadataResolver maps (chain, address) to vault metadata
type MetadataResolver interface {
	Resolve(ctx context.Context, chainID types.ChainID, address string) (*types.VaultMetadata, bool)
}

// SharePriceProvider fetches per-vault price-per-share series
type SharePriceProvider interface {
	GetSeries(ctx context.Context, chainID types.ChainID, vaultAddress string) map[int64]float64
}

// UnderlyingPriceProvider resolves USD prices for underlying tokens
type UnderlyingPriceProvider interface {
	ResolvePrices(ctx context.Context, tokens []TokenRequest, timestamps []int64) map[string]map[int64]float64
}

// ResponseCache is the short-TTL cache for fully assembled series
type ResponseCache interface {
	GetSeries(ctx context.Context, address string, periodDays int) (*types.HoldingsSeries, bool)
	SetSeries(ctx context.Context, series *types.HoldingsSeries)
	InvalidateAddress(ctx context.Context, address string) error
}

// ValuationService computes the daily USD value of a user's vault
// holdings over a trailing window of calendar days.
//
// Past days are served from the totals cache when present and computed
// once otherwise; today is always recomputed because its price inputs
// are still moving, and is never persisted. Only an event source failure
// aborts a request: every other upstream problem degrades the affected
// vault, token or day toward zero.
type ValuationService struct {
	events     EventSource
	totals     TotalsStore
	metadata   MetadataResolver
	sharePrice SharePriceProvider
	prices     UnderlyingPriceProvider
	responses  ResponseCache

	now func() time.Time
}

// NewValuationService creates a new valuation service. The response
// cache may be nil, which disables full-series caching.
func NewValuationService(
	events EventSource,
	totals TotalsStore,
	metadata MetadataResolver,
	sharePrice SharePriceProvider,
	prices UnderlyingPriceProvider,
	responses ResponseCache,
) *ValuationService {
	return &ValuationService{
		events:     events,
		totals:     totals,
		metadata:   metadata,
		sharePrice: sharePrice,
		prices:     prices,
		responses:  responses,
		now:        time.Now,
	}
}

// day is one UTC calendar day of the requested window
type day struct {
	date      string // YYYY-MM-DD
	timestamp int64  // unix seconds at 00:00:00 UTC
	isToday   bool
}

// GetHoldingsSeries returns one valuation point per calendar day for the
// trailing periodDays window ending today, oldest first.
func (s *ValuationService) GetHoldingsSeries(ctx context.Context, address string, periodDays int) (*types.HoldingsSeries, error) {
	if periodDays <= 0 {
		return nil, errors.NewInvalidParameterError("periodDays", "must be a positive integer")
	}
	address = strings.ToLower(address)

	if s.responses != nil {
		if cached, ok := s.responses.GetSeries(ctx, address, periodDays); ok {
			return cached, nil
		}
	}

	window := s.dayWindow(periodDays)
	cached := s.loadCachedTotals(ctx, address, window)

	var missing []day
	for _, d := range window {
		if _, ok := cached[d.date]; !ok || d.isToday {
			missing = append(missing, d)
		}
	}

	computed := make(map[string]float64, len(missing))
	if len(missing) > 0 {
		events, err := s.fetchEvents(ctx, address)
		if err != nil {
			return nil, err
		}

		timeline := ledger.BuildTimeline(events)
		if len(timeline) == 0 {
			for _, d := range missing {
				computed[d.date] = 0
			}
		} else {
			if err := s.valueDays(ctx, timeline, missing, computed); err != nil {
				return nil, err
			}
		}

		s.persistTotals(ctx, address, missing, computed)
	}

	series := &types.HoldingsSeries{
		Address:    address,
		PeriodDays: periodDays,
		DataPoints: make([]types.HoldingsPoint, 0, len(window)),
	}
	for _, d := range window {
		value, ok := computed[d.date]
		if !ok {
			value = cached[d.date]
		}
		series.DataPoints = append(series.DataPoints, types.HoldingsPoint{
			Date:          d.date,
			Timestamp:     d.timestamp,
			TotalUSDValue: value,
		})
	}

	if s.responses != nil {
		s.responses.SetSeries(ctx, series)
	}
	return series, nil
}

// Invalidate drops all cached valuations for an address; an empty
// address drops everything. Safe to call at any time: the next request
// recomputes from events.
func (s *ValuationService) Invalidate(ctx context.Context, address string) error {
	address = strings.ToLower(address)

	if err := s.totals.Clear(ctx, address); err != nil {
		return errors.NewCacheError("clear totals", err)
	}
	if s.responses != nil {
		if err := s.responses.InvalidateAddress(ctx, address); err != nil {
			// Entries expire on their own TTL, so a failed sweep only delays
			// freshness.
			logging.WithError(err).Warn("Failed to invalidate response cache")
		}
	}
	return nil
}

// dayWindow builds the trailing window of UTC calendar days ending
// today, oldest first.
func (s *ValuationService) dayWindow(periodDays int) []day {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	window := make([]day, 0, periodDays)
	for i := periodDays - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		window = append(window, day{
			date:      d.Format("2006-01-02"),
			timestamp: d.Unix(),
			isToday:   i == 0,
		})
	}
	return window
}

// loadCachedTotals reads the persisted per-day totals for the window.
// A cache failure is a full miss, never an error.
func (s *ValuationService) loadCachedTotals(ctx context.Context, address string, window []day) map[string]float64 {
	cached := make(map[string]float64)
	if len(window) == 0 {
		return cached
	}

	totals, err := s.totals.GetTotals(ctx, address, window[0].date, window[len(window)-1].date)
	if err != nil {
		logging.WithError(err).Warn("Failed to read cached totals, recomputing window")
		return cached
	}
	for _, t := range totals {
		cached[t.Date] = t.USDValue
	}
	return cached
}

// fetchEvents pulls the four event streams concurrently. Any failure is
// fatal for the request: a partial timeline would silently undercount.
func (s *ValuationService) fetchEvents(ctx context.Context, address string) (*types.UserEvents, error) {
	var events types.UserEvents
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		events.Deposits, err = s.events.GetDeposits(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		events.Withdrawals, err = s.events.GetWithdrawals(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		events.TransfersIn, err = s.events.GetTransfersIn(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		events.TransfersOut, err = s.events.GetTransfersOut(gctx, address)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, errors.NewEventSourceError(err)
	}
	return &events, nil
}

// vaultPricing is the per-vault context needed to value a day
type vaultPricing struct {
	key  ledger.VaultKey
	meta *types.VaultMetadata
	pps  map[int64]float64
}

// valueDays computes the USD total for each requested day from the
// timeline. Vaults without directory metadata are skipped; share-price
// and underlying-price gaps degrade per vault and day.
func (s *ValuationService) valueDays(ctx context.Context, timeline []ledger.Event, days []day, computed map[string]float64) error {
	vaults := ledger.UniqueVaults(timeline)

	pricing := make([]vaultPricing, len(vaults))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range vaults {
		g.Go(func() error {
			meta, ok := s.metadata.Resolve(gctx, v.ChainID, v.VaultAddress)
			if !ok {
				logging.WithFields(map[string]interface{}{
					"vault":   v.VaultAddress,
					"chainId": v.ChainID,
				}).Warn("Vault not in directory, skipping its contribution")
				return nil
			}
			pricing[i] = vaultPricing{
				key:  v,
				meta: meta,
				pps:  s.sharePrice.GetSeries(gctx, v.ChainID, v.VaultAddress),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var tokens []TokenRequest
	seen := make(map[string]bool)
	for _, p := range pricing {
		if p.meta == nil {
			continue
		}
		key := types.TokenKey(p.meta.ChainID, p.meta.UnderlyingToken.Address)
		if !seen[key] {
			seen[key] = true
			tokens = append(tokens, TokenRequest{
				ChainID: p.meta.ChainID,
				Address: p.meta.UnderlyingToken.Address,
			})
		}
	}

	timestamps := make([]int64, 0, len(days))
	for _, d := range days {
		timestamps = append(timestamps, d.timestamp)
	}
	tokenPrices := s.prices.ResolvePrices(ctx, tokens, timestamps)

	for _, d := range days {
		total := 0.0
		for _, p := range pricing {
			if p.meta == nil {
				continue
			}
			balance := ledger.BalanceAt(timeline, p.key.VaultAddress, p.key.ChainID, d.timestamp)
			if balance.Sign() == 0 {
				continue
			}

			shares := sharesToFloat(balance, p.meta.VaultDecimals)
			pps := SharePriceAt(p.pps, d.timestamp)
			price := PriceAt(tokenPrices[types.TokenKey(p.meta.ChainID, p.meta.UnderlyingToken.Address)], d.timestamp)
			total += shares * pps * price
		}
		computed[d.date] = total
	}
	return nil
}

// persistTotals writes newly computed past days to the totals cache.
// Today is excluded because its value is still moving; write failures
// only cost a recomputation later.
func (s *ValuationService) persistTotals(ctx context.Context, address string, days []day, computed map[string]float64) {
	var toSave []types.DailyTotal
	for _, d := range days {
		if d.isToday {
			continue
		}
		value, ok := computed[d.date]
		if !ok {
			continue
		}
		toSave = append(toSave, types.DailyTotal{Date: d.date, USDValue: value})
	}
	if len(toSave) == 0 {
		return
	}

	if err := s.totals.SaveTotals(ctx, address, toSave); err != nil {
		logging.WithError(err).WithField("days", len(toSave)).Warn("Failed to persist daily totals")
	}
}

// sharesToFloat converts a raw share balance to a float share count
// using the vault's own decimals
func sharesToFloat(balance *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(balance)
	if decimals > 0 {
		f.Quo(f, big.NewFloat(math.Pow10(decimals)))
	}
	result, _ := f.Float64()
	return result
}
