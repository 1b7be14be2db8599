// Package adapter contains HTTP clients for the external data
// collaborators: the vault directory, the share-price timeseries
// endpoint and the historical price oracle. Each client validates the
// response shape at the boundary and converts malformed payloads into
// upstream errors instead of letting parse failures escape.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vault-holdings/internal/errors"
	"github.com/vault-holdings/internal/types"
)

// VaultAsset is the underlying token of a directory entry
type VaultAsset struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// VaultStaking is the optional staking contract of a directory entry
type VaultStaking struct {
	Address   string `json:"address"`
	Available bool   `json:"available"`
}

// VaultListing is one vault entry of the directory response
type VaultListing struct {
	Address  string        `json:"address"`
	ChainID  types.ChainID `json:"chainId"`
	Symbol   string        `json:"symbol"`
	Decimals int           `json:"decimals"`
	Asset    VaultAsset    `json:"asset"`
	Staking  *VaultStaking `json:"staking,omitempty"`
}

// VaultDirectoryClient fetches the full vault listing from the external
// directory endpoint
type VaultDirectoryClient struct {
	baseURL string
	client  *http.Client
}

// NewVaultDirectoryClient creates a new vault directory client
func NewVaultDirectoryClient(baseURL string, timeout time.Duration) *VaultDirectoryClient {
	return &VaultDirectoryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchVaults fetches the complete vault directory. Entries without a
// vault address or underlying asset address are dropped: they cannot be
// valued and a partial directory beats none.
func (c *VaultDirectoryClient) FetchVaults(ctx context.Context) ([]VaultListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamItemError("vault-directory", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamItemError("vault-directory", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstreamItemError("vault-directory",
			fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(body, 200)))
	}

	var listings []VaultListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, errors.NewMalformedResponseError("vault-directory", err)
	}

	valid := make([]VaultListing, 0, len(listings))
	for _, l := range listings {
		if l.Address == "" || l.Asset.Address == "" {
			continue
		}
		valid = append(valid, l)
	}

	return valid, nil
}

// truncate limits a response body for error messages
func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
