// Package service implements the holdings valuation pipeline: vault
// metadata resolution, share-price and underlying-price resolution, and
// the daily valuation aggregator that ties them together.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/vault-holdings/internal/adapter"
	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/types"
)

// VaultDirectorySource fetches the full vault listing
type VaultDirectorySource interface {
	FetchVaults(ctx context.Context) ([]adapter.VaultListing, error)
}

type vaultKey struct {
	chainID types.ChainID
	address string
}

// MetadataService resolves (chain, vault-or-staking address) to vault
// metadata from a directory loaded at most once per process lifetime.
//
// A failed load caches an empty directory rather than retrying: vault
// lists change rarely enough that a restart is the recovery path for a
// transient failure at boot. The service is injected rather than being a
// package-level global so tests get a fresh directory per run.
type MetadataService struct {
	source VaultDirectorySource

	once    sync.Once
	vaults  map[vaultKey]*types.VaultMetadata
	staking map[vaultKey]*types.VaultMetadata
}

// NewMetadataService creates a new metadata service
func NewMetadataService(source VaultDirectorySource) *MetadataService {
	return &MetadataService{
		source:  source,
		vaults:  make(map[vaultKey]*types.VaultMetadata),
		staking: make(map[vaultKey]*types.VaultMetadata),
	}
}

// Resolve maps a vault or staking-contract address on a chain to its
// metadata. A miss is not an error: the caller skips that vault's
// contribution for the day.
func (s *MetadataService) Resolve(ctx context.Context, chainID types.ChainID, address string) (*types.VaultMetadata, bool) {
	s.once.Do(func() { s.load(ctx) })

	key := vaultKey{chainID: chainID, address: strings.ToLower(address)}
	if meta, ok := s.vaults[key]; ok {
		return meta, true
	}
	if meta, ok := s.staking[key]; ok {
		return meta, true
	}
	return nil, false
}

func (s *MetadataService) load(ctx context.Context) {
	listings, err := s.source.FetchVaults(ctx)
	if err != nil {
		// Empty directory stays cached for the process lifetime.
		logging.WithError(err).Error("Failed to load vault directory, caching empty directory")
		return
	}

	for _, l := range listings {
		meta := &types.VaultMetadata{
			VaultAddress:  strings.ToLower(l.Address),
			ChainID:       l.ChainID,
			Symbol:        l.Symbol,
			VaultDecimals: l.Decimals,
			UnderlyingToken: types.TokenInfo{
				Address:  strings.ToLower(l.Asset.Address),
				Symbol:   l.Asset.Symbol,
				Decimals: l.Asset.Decimals,
			},
		}
		s.vaults[vaultKey{chainID: l.ChainID, address: meta.VaultAddress}] = meta

		// Staking contracts hold vault shares on the user's behalf and are
		// valued identically to holding the shares directly.
		if l.Staking != nil && l.Staking.Available && l.Staking.Address != "" {
			stakingMeta := *meta
			stakingMeta.VaultAddress = strings.ToLower(l.Staking.Address)
			s.staking[vaultKey{chainID: l.ChainID, address: stakingMeta.VaultAddress}] = &stakingMeta
		}
	}

	logging.WithFields(map[string]interface{}{
		"vaults":  len(s.vaults),
		"staking": len(s.staking),
	}).Info("Vault directory loaded")
}
