// Package ledger turns raw vault event streams into a chronologically
// ordered share-balance ledger and answers balance queries against it.
package ledger

import (
	"math/big"
	"sort"
	"strings"

	"github.com/vault-holdings/internal/types"
)

// ZeroAddress is the mint/burn counterparty for share transfers
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Event is one share-balance delta for a (vault, chain) pair
type Event struct {
	VaultAddress   string // normalized lowercase
	ChainID        types.ChainID
	BlockNumber    uint64
	BlockTimestamp int64 // unix seconds
	SharesDelta    *big.Int
}

// VaultKey identifies a vault on a chain
type VaultKey struct {
	VaultAddress string
	ChainID      types.ChainID
}

// BuildTimeline merges the four raw event streams for one user into a
// single ledger ordered by (blockTimestamp, blockNumber) ascending.
//
// Transfer-in events from the zero address and transfer-out events to the
// zero address are dropped: those are mints and burns, already captured
// by the deposit and withdrawal streams. Events whose numeric fields do
// not parse as decimal integers are skipped. Empty input yields an empty
// timeline, which callers must treat as "no historical holdings", not as
// an error.
func BuildTimeline(events *types.UserEvents) []Event {
	if events == nil {
		return nil
	}

	timeline := make([]Event, 0,
		len(events.Deposits)+len(events.Withdrawals)+
			len(events.TransfersIn)+len(events.TransfersOut))

	for _, d := range events.Deposits {
		shares, ok := parseAmount(d.Shares)
		if !ok {
			continue
		}
		timeline = append(timeline, Event{
			VaultAddress:   strings.ToLower(d.VaultAddress),
			ChainID:        d.ChainID,
			BlockNumber:    d.BlockNumber,
			BlockTimestamp: d.BlockTimestamp,
			SharesDelta:    shares,
		})
	}

	for _, w := range events.Withdrawals {
		shares, ok := parseAmount(w.Shares)
		if !ok {
			continue
		}
		timeline = append(timeline, Event{
			VaultAddress:   strings.ToLower(w.VaultAddress),
			ChainID:        w.ChainID,
			BlockNumber:    w.BlockNumber,
			BlockTimestamp: w.BlockTimestamp,
			SharesDelta:    new(big.Int).Neg(shares),
		})
	}

	for _, t := range events.TransfersIn {
		if strings.EqualFold(t.Sender, ZeroAddress) {
			continue
		}
		value, ok := parseAmount(t.Value)
		if !ok {
			continue
		}
		timeline = append(timeline, Event{
			VaultAddress:   strings.ToLower(t.VaultAddress),
			ChainID:        t.ChainID,
			BlockNumber:    t.BlockNumber,
			BlockTimestamp: t.BlockTimestamp,
			SharesDelta:    value,
		})
	}

	for _, t := range events.TransfersOut {
		if strings.EqualFold(t.Receiver, ZeroAddress) {
			continue
		}
		value, ok := parseAmount(t.Value)
		if !ok {
			continue
		}
		timeline = append(timeline, Event{
			VaultAddress:   strings.ToLower(t.VaultAddress),
			ChainID:        t.ChainID,
			BlockNumber:    t.BlockNumber,
			BlockTimestamp: t.BlockTimestamp,
			SharesDelta:    new(big.Int).Neg(value),
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].BlockTimestamp != timeline[j].BlockTimestamp {
			return timeline[i].BlockTimestamp < timeline[j].BlockTimestamp
		}
		return timeline[i].BlockNumber < timeline[j].BlockNumber
	})

	return timeline
}

// UniqueVaults returns the distinct (vault, chain) pairs in the timeline
// in first-seen order.
func UniqueVaults(timeline []Event) []VaultKey {
	seen := make(map[VaultKey]bool)
	vaults := make([]VaultKey, 0)
	for _, e := range timeline {
		key := VaultKey{VaultAddress: e.VaultAddress, ChainID: e.ChainID}
		if !seen[key] {
			seen[key] = true
			vaults = append(vaults, key)
		}
	}
	return vaults
}

// parseAmount parses a non-negative decimal string into a big.Int
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
