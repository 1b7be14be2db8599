package storage

import (
	"context"
	"fmt"

	"github.com/vault-holdings/internal/types"
)

// PriceRow is one persisted (tokenKey, timestamp) → USD price entry
type PriceRow struct {
	TokenKey  string
	Timestamp int64
	Price     float64
}

// PriceRepository persists historical token prices in Postgres. Keys are
// "<chain-prefix>:<lowercase token address>". Historical prices never
// change, so rows live forever and last-write-wins upserts are safe.
type PriceRepository struct {
	db *PostgresDB
}

// NewPriceRepository creates a new token price repository
func NewPriceRepository(db *PostgresDB) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetPrices returns the cached prices for the requested (tokenKey,
// timestamp) pairs as tokenKey → timestamp → price. Missing pairs are
// simply absent from the result.
func (r *PriceRepository) GetPrices(ctx context.Context, wanted map[string][]int64) (map[string]map[int64]float64, error) {
	result := make(map[string]map[int64]float64, len(wanted))
	if len(wanted) == 0 {
		return result, nil
	}

	query := `
		SELECT ts, price
		FROM token_prices
		WHERE token_key = $1 AND ts = ANY($2)
	`

	for tokenKey, timestamps := range wanted {
		if len(timestamps) == 0 {
			continue
		}

		rows, err := r.db.Pool().Query(ctx, query, tokenKey, timestamps)
		if err != nil {
			return nil, fmt.Errorf("failed to query token prices: %w", err)
		}

		series := make(map[int64]float64)
		for rows.Next() {
			var p types.PricePoint
			if err := rows.Scan(&p.Timestamp, &p.Price); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan token price: %w", err)
			}
			series[p.Timestamp] = p.Price
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if len(series) > 0 {
			result[tokenKey] = series
		}
	}

	return result, nil
}

// SavePrices upserts resolved price points by (tokenKey, timestamp)
func (r *PriceRepository) SavePrices(ctx context.Context, prices []PriceRow) error {
	if len(prices) == 0 {
		return nil
	}

	query := `
		INSERT INTO token_prices (token_key, ts, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_key, ts)
		DO UPDATE SET price = EXCLUDED.price
	`

	for _, p := range prices {
		if _, err := r.db.Pool().Exec(ctx, query, p.TokenKey, p.Timestamp, p.Price); err != nil {
			return fmt.Errorf("failed to upsert token price %s@%d: %w", p.TokenKey, p.Timestamp, err)
		}
	}
	return nil
}
