package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/vault-holdings/internal/errors"
	"github.com/vault-holdings/internal/logging"
)

// OraclePrice is one price entry of an oracle response. The oracle
// returns prices for one queried key in the same order as the requested
// timestamps; the echoed timestamp is informational and must not be used
// for mapping.
type OraclePrice struct {
	Timestamp  int64   `json:"timestamp"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

type oracleResponse struct {
	Coins map[string]struct {
		Symbol string        `json:"symbol"`
		Prices []OraclePrice `json:"prices"`
	} `json:"coins"`
}

// PriceOracleClient talks to the historical price oracle. A shared
// limiter throttles outbound requests on top of the resolver's wave
// spacing so concurrent batches stay under the oracle's rate limits.
type PriceOracleClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewPriceOracleClient creates a new price oracle client
func NewPriceOracleClient(baseURL string, timeout time.Duration, requestsPerSec float64) *PriceOracleClient {
	return &PriceOracleClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), int(requestsPerSec)),
	}
}

// BatchHistorical requests historical prices for a map of
// "<chain-prefix>:<address>" keys to requested timestamps. The returned
// slices preserve the oracle's response order per key.
func (c *PriceOracleClient) BatchHistorical(ctx context.Context, coins map[string][]int64) (map[string][]OraclePrice, error) {
	if len(coins) == 0 {
		return map[string][]OraclePrice{}, nil
	}

	coinsJSON, err := json.Marshal(coins)
	if err != nil {
		return nil, fmt.Errorf("failed to encode coins parameter: %w", err)
	}

	requestURL := fmt.Sprintf("%s/batchHistorical?coins=%s", c.baseURL, url.QueryEscape(string(coinsJSON)))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := c.doRequest(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var parsed oracleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewMalformedResponseError("price-oracle", err)
	}

	result := make(map[string][]OraclePrice, len(parsed.Coins))
	for key, coin := range parsed.Coins {
		result[key] = coin.Prices
	}

	return result, nil
}

// doRequest performs the HTTP request with retry on 429
func (c *PriceOracleClient) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	const maxRetries = 3
	baseDelay := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, errors.NewUpstreamItemError("price-oracle", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.NewUpstreamItemError("price-oracle", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			if attempt < maxRetries {
				delay := baseDelay * time.Duration(1<<uint(attempt))
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, err := strconv.Atoi(retryAfter); err == nil {
						delay = time.Duration(seconds) * time.Second
					}
				}
				logging.WithFields(map[string]interface{}{
					"attempt": attempt + 1,
					"delay":   delay.String(),
				}).Warn("Price oracle rate limited, retrying")
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
				}
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, errors.NewUpstreamItemError("price-oracle",
				fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, truncate(body, 200)))
		}

		return body, nil
	}

	return nil, errors.NewUpstreamItemError("price-oracle",
		fmt.Errorf("max retries exceeded: %w", lastErr))
}
