package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/vault-holdings/internal/types"
)

// TotalsRepository persists computed (address, date) → USD totals in
// Postgres. Rows for past days are stable once written; "today" is never
// persisted by the valuation service, so the upsert here is only reached
// for final values.
type TotalsRepository struct {
	db *PostgresDB
}

// NewTotalsRepository creates a new daily totals repository
func NewTotalsRepository(db *PostgresDB) *TotalsRepository {
	return &TotalsRepository{db: db}
}

// GetTotals returns the cached totals for an address within
// [startDate, endDate], dates as YYYY-MM-DD, ascending
func (r *TotalsRepository) GetTotals(ctx context.Context, address, startDate, endDate string) ([]types.DailyTotal, error) {
	query := `
		SELECT day, usd_value
		FROM daily_totals
		WHERE user_address = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(address), startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	var totals []types.DailyTotal
	for rows.Next() {
		var t types.DailyTotal
		if err := rows.Scan(&t.Date, &t.USDValue); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SaveTotals upserts daily totals for an address by (address, day)
func (r *TotalsRepository) SaveTotals(ctx context.Context, address string, totals []types.DailyTotal) error {
	if len(totals) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_totals (user_address, day, usd_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_address, day)
		DO UPDATE SET usd_value = EXCLUDED.usd_value
	`

	address = strings.ToLower(address)
	for _, t := range totals {
		if _, err := r.db.Pool().Exec(ctx, query, address, t.Date, t.USDValue); err != nil {
			return fmt.Errorf("failed to upsert daily total for %s: %w", t.Date, err)
		}
	}
	return nil
}

// Clear removes cached totals for one address, or for all addresses when
// address is empty
func (r *TotalsRepository) Clear(ctx context.Context, address string) error {
	if address == "" {
		if _, err := r.db.Pool().Exec(ctx, `DELETE FROM daily_totals`); err != nil {
			return fmt.Errorf("failed to clear daily totals: %w", err)
		}
		return nil
	}

	if _, err := r.db.Pool().Exec(ctx,
		`DELETE FROM daily_totals WHERE user_address = $1`, strings.ToLower(address)); err != nil {
		return fmt.Errorf("failed to clear daily totals for address: %w", err)
	}
	return nil
}
