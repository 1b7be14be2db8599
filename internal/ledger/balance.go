package ledger

import (
	"math/big"

	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/types"
)

// BalanceAt replays the ordered timeline and returns the share balance of
// one vault on one chain at the given timestamp.
//
// The scan accumulates SharesDelta for matching events with
// blockTimestamp <= timestamp and stops at the first later event, which
// the timeline ordering makes a prefix scan. A negative running balance
// is clamped to zero: upstream event data can be incomplete or
// inconsistent, and undercounting beats returning a negative holding.
// Clamping is logged so indexer coverage gaps stay visible.
func BalanceAt(timeline []Event, vaultAddress string, chainID types.ChainID, timestamp int64) *big.Int {
	balance := new(big.Int)
	clamped := false

	for _, e := range timeline {
		if e.BlockTimestamp > timestamp {
			break
		}
		if e.VaultAddress != vaultAddress || e.ChainID != chainID {
			continue
		}
		balance.Add(balance, e.SharesDelta)
		if balance.Sign() < 0 {
			balance.SetInt64(0)
			clamped = true
		}
	}

	if clamped {
		logging.WithFields(map[string]interface{}{
			"vault":     vaultAddress,
			"chainId":   chainID,
			"timestamp": timestamp,
		}).Warn("Negative share balance clamped to zero during replay")
	}

	return balance
}
