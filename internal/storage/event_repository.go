package storage

import (
	"context"

	"github.com/vault-holdings/internal/types"
)

// EventRepository reads the indexed vault event log from ClickHouse.
// The indexer pipeline writes these tables; the valuation engine only
// reads them. Numeric amounts are stored as decimal strings so share
// quantities never lose precision in transit.
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new vault event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// GetDeposits returns all vault deposits made by an address
func (r *EventRepository) GetDeposits(ctx context.Context, address string) ([]types.DepositEvent, error) {
	query := `
		SELECT vault_address, chain_id, block_number, block_timestamp, owner, assets, shares
		FROM vault_deposits
		WHERE lower(owner) = lower(?)
		ORDER BY block_timestamp ASC, block_number ASC
	`

	rows, err := r.db.conn.Query(ctx, query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []types.DepositEvent
	for rows.Next() {
		var d types.DepositEvent
		var chainID uint64
		if err := rows.Scan(
			&d.VaultAddress, &chainID, &d.BlockNumber, &d.BlockTimestamp,
			&d.Owner, &d.Assets, &d.Shares,
		); err != nil {
			return nil, err
		}
		d.ChainID = types.ChainID(chainID)
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// GetWithdrawals returns all vault withdrawals made by an address
func (r *EventRepository) GetWithdrawals(ctx context.Context, address string) ([]types.WithdrawEvent, error) {
	query := `
		SELECT vault_address, chain_id, block_number, block_timestamp, owner, assets, shares
		FROM vault_withdrawals
		WHERE lower(owner) = lower(?)
		ORDER BY block_timestamp ASC, block_number ASC
	`

	rows, err := r.db.conn.Query(ctx, query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []types.WithdrawEvent
	for rows.Next() {
		var w types.WithdrawEvent
		var chainID uint64
		if err := rows.Scan(
			&w.VaultAddress, &chainID, &w.BlockNumber, &w.BlockTimestamp,
			&w.Owner, &w.Assets, &w.Shares,
		); err != nil {
			return nil, err
		}
		w.ChainID = types.ChainID(chainID)
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// GetTransfersIn returns all vault share transfers received by an address
func (r *EventRepository) GetTransfersIn(ctx context.Context, address string) ([]types.TransferEvent, error) {
	return r.getTransfers(ctx, "receiver", address)
}

// GetTransfersOut returns all vault share transfers sent by an address
func (r *EventRepository) GetTransfersOut(ctx context.Context, address string) ([]types.TransferEvent, error) {
	return r.getTransfers(ctx, "sender", address)
}

func (r *EventRepository) getTransfers(ctx context.Context, side, address string) ([]types.TransferEvent, error) {
	query := `
		SELECT vault_address, chain_id, block_number, block_timestamp, sender, receiver, value
		FROM vault_transfers
		WHERE lower(` + side + `) = lower(?)
		ORDER BY block_timestamp ASC, block_number ASC
	`

	rows, err := r.db.conn.Query(ctx, query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []types.TransferEvent
	for rows.Next() {
		var t types.TransferEvent
		var chainID uint64
		if err := rows.Scan(
			&t.VaultAddress, &chainID, &t.BlockNumber, &t.BlockTimestamp,
			&t.Sender, &t.Receiver, &t.Value,
		); err != nil {
			return nil, err
		}
		t.ChainID = types.ChainID(chainID)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
