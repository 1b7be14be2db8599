// Package types provides common type definitions for the holdings valuation engine.
package types

import (
	"fmt"
	"strings"
)

// ChainID represents a numeric EVM chain identifier
type ChainID uint64

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = 10
	// ChainBNB represents the BNB Chain (BSC)
	ChainBNB ChainID = 56
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = 137
	// ChainBase represents the Base network
	ChainBase ChainID = 8453
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = 42161
)

// OraclePrefix returns the chain prefix string the price oracle uses in
// place of a numeric chain ID (e.g. "ethereum", "base"). Unknown chains
// fall back to "ethereum" so a misconfigured chain degrades to a price
// miss rather than a malformed oracle key.
func (c ChainID) OraclePrefix() string {
	switch c {
	case ChainEthereum:
		return "ethereum"
	case ChainOptimism:
		return "optimism"
	case ChainBNB:
		return "bsc"
	case ChainPolygon:
		return "polygon"
	case ChainBase:
		return "base"
	case ChainArbitrum:
		return "arbitrum"
	default:
		return "ethereum"
	}
}

// TokenKey builds the oracle cache key "<chain-prefix>:<lowercase address>"
// for a token on a chain.
func TokenKey(chain ChainID, token string) string {
	return fmt.Sprintf("%s:%s", chain.OraclePrefix(), strings.ToLower(token))
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// TokenInfo describes an underlying token of a vault
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// VaultMetadata maps a vault (or its staking contract) to the underlying
// token and the vault's own share decimals. Immutable once loaded for a
// directory snapshot.
type VaultMetadata struct {
	VaultAddress    string    `json:"vaultAddress"`
	ChainID         ChainID   `json:"chainId"`
	Symbol          string    `json:"symbol"`
	VaultDecimals   int       `json:"vaultDecimals"`
	UnderlyingToken TokenInfo `json:"underlyingToken"`
}

// DepositEvent is a raw vault deposit from the event source.
// Numeric fields are decimal strings as delivered by the indexer.
type DepositEvent struct {
	VaultAddress   string  `json:"vaultAddress"`
	ChainID        ChainID `json:"chainId"`
	BlockNumber    uint64  `json:"blockNumber"`
	BlockTimestamp int64   `json:"blockTimestamp"`
	Owner          string  `json:"owner"`
	Assets         string  `json:"assets"`
	Shares         string  `json:"shares"`
}

// WithdrawEvent is a raw vault withdrawal from the event source
type WithdrawEvent struct {
	VaultAddress   string  `json:"vaultAddress"`
	ChainID        ChainID `json:"chainId"`
	BlockNumber    uint64  `json:"blockNumber"`
	BlockTimestamp int64   `json:"blockTimestamp"`
	Owner          string  `json:"owner"`
	Assets         string  `json:"assets"`
	Shares         string  `json:"shares"`
}

// TransferEvent is a raw vault share transfer from the event source
type TransferEvent struct {
	VaultAddress   string  `json:"vaultAddress"`
	ChainID        ChainID `json:"chainId"`
	BlockNumber    uint64  `json:"blockNumber"`
	BlockTimestamp int64   `json:"blockTimestamp"`
	Sender         string  `json:"sender"`
	Receiver       string  `json:"receiver"`
	Value          string  `json:"value"`
}

// UserEvents groups the four raw event streams fetched for one address
type UserEvents struct {
	Deposits     []DepositEvent
	Withdrawals  []WithdrawEvent
	TransfersIn  []TransferEvent
	TransfersOut []TransferEvent
}

// Empty reports whether no events of any kind were found for the address
func (e *UserEvents) Empty() bool {
	return len(e.Deposits) == 0 && len(e.Withdrawals) == 0 &&
		len(e.TransfersIn) == 0 && len(e.TransfersOut) == 0
}

// DailyTotal is one cached (address, date) → USD value row
type DailyTotal struct {
	Date     string  `json:"date"` // YYYY-MM-DD, UTC day
	USDValue float64 `json:"usdValue"`
}

// HoldingsPoint is one day of the computed holdings series
type HoldingsPoint struct {
	Date          string  `json:"date"`
	Timestamp     int64   `json:"timestamp"` // unix seconds at UTC day start
	TotalUSDValue float64 `json:"totalUsdValue"`
}

// HoldingsSeries is the full response for one address: one point per
// calendar day in the trailing window, oldest first.
type HoldingsSeries struct {
	Address    string          `json:"address"`
	PeriodDays int             `json:"periodDays"`
	DataPoints []HoldingsPoint `json:"dataPoints"`
}

// PricePoint is a (timestamp, price) pair in a sparse price series
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}
