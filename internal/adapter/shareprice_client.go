package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vault-holdings/internal/errors"
	"github.com/vault-holdings/internal/types"
)

// SharePricePoint is one point of a vault's price-per-share series as
// delivered by the timeseries endpoint: unix seconds plus a decimal
// string value.
type SharePricePoint struct {
	Time  int64  `json:"time"`
	Value string `json:"value"`
}

// SharePriceClient fetches per-vault price-per-share time series from
// the external timeseries endpoint, one network call per vault.
type SharePriceClient struct {
	baseURL string
	client  *http.Client
}

// NewSharePriceClient creates a new share price client
func NewSharePriceClient(baseURL string, timeout time.Duration) *SharePriceClient {
	return &SharePriceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchSeries fetches the PPS series for one vault and returns it as a
// sparse timestamp → price mapping. Points whose value does not parse as
// a decimal are skipped.
func (c *SharePriceClient) FetchSeries(ctx context.Context, chainID types.ChainID, vaultAddress string) (map[int64]float64, error) {
	url := fmt.Sprintf("%s?chainId=%d&address=%s", c.baseURL, chainID, vaultAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamItemError("share-price", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamItemError("share-price", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstreamItemError("share-price",
			fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(body, 200)))
	}

	var points []SharePricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, errors.NewMalformedResponseError("share-price", err)
	}

	series := make(map[int64]float64, len(points))
	for _, p := range points {
		value, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			continue
		}
		series[p.Time] = value
	}

	return series, nil
}
