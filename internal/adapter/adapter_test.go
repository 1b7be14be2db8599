package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-holdings/internal/errors"
	"github.com/vault-holdings/internal/types"
)

func TestFetchVaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]VaultListing{
			{
				Address:  "0xAAAA",
				ChainID:  types.ChainEthereum,
				Symbol:   "yvUSDC",
				Decimals: 6,
				Asset:    VaultAsset{Address: "0xCCCC", Symbol: "USDC", Decimals: 6},
			},
			{
				// No vault address: must be dropped.
				ChainID: types.ChainBase,
				Asset:   VaultAsset{Address: "0xDDDD"},
			},
			{
				// No asset address: must be dropped.
				Address: "0xBBBB",
				ChainID: types.ChainBase,
			},
		})
	}))
	defer server.Close()

	client := NewVaultDirectoryClient(server.URL, 5*time.Second)
	listings, err := client.FetchVaults(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "yvUSDC", listings[0].Symbol)
}

func TestFetchVaults_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewVaultDirectoryClient(server.URL, 5*time.Second)
	_, err := client.FetchVaults(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryUpstreamItem, errors.Categorize(err).Category)
}

func TestFetchVaults_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewVaultDirectoryClient(server.URL, 5*time.Second)
	_, err := client.FetchVaults(context.Background())
	require.Error(t, err)
	assert.Equal(t, "MALFORMED_RESPONSE", errors.Categorize(err).Code)
}

func TestFetchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("chainId"))
		assert.Equal(t, "0xaaaa", r.URL.Query().Get("address"))
		json.NewEncoder(w).Encode([]SharePricePoint{
			{Time: 100, Value: "1.05"},
			{Time: 200, Value: "not-a-number"},
			{Time: 300, Value: "1.07"},
		})
	}))
	defer server.Close()

	client := NewSharePriceClient(server.URL, 5*time.Second)
	series, err := client.FetchSeries(context.Background(), types.ChainEthereum, "0xaaaa")
	require.NoError(t, err)

	assert.Equal(t, map[int64]float64{100: 1.05, 300: 1.07}, series,
		"unparseable values are skipped")
}

func TestBatchHistorical(t *testing.T) {
	var gotCoins map[string][]int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := url.QueryUnescape(r.URL.Query().Get("coins"))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal([]byte(raw), &gotCoins))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"coins": map[string]interface{}{
				"ethereum:0xcccc": map[string]interface{}{
					"symbol": "USDC",
					"prices": []OraclePrice{
						{Timestamp: 101, Price: 1.0, Confidence: 0.99},
						{Timestamp: 201, Price: 1.01, Confidence: 0.99},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewPriceOracleClient(server.URL, 5*time.Second, 50)
	prices, err := client.BatchHistorical(context.Background(), map[string][]int64{
		"ethereum:0xcccc": {100, 200},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string][]int64{"ethereum:0xcccc": {100, 200}}, gotCoins)
	require.Len(t, prices["ethereum:0xcccc"], 2)
	assert.Equal(t, 1.0, prices["ethereum:0xcccc"][0].Price)
	assert.Equal(t, 1.01, prices["ethereum:0xcccc"][1].Price)
}

func TestBatchHistorical_RetriesOn429(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"coins": map[string]interface{}{}})
	}))
	defer server.Close()

	client := NewPriceOracleClient(server.URL, 5*time.Second, 50)
	_, err := client.BatchHistorical(context.Background(), map[string][]int64{"ethereum:0xcccc": {100}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestBatchHistorical_EmptyRequest(t *testing.T) {
	client := NewPriceOracleClient("http://unused", time.Second, 50)
	prices, err := client.BatchHistorical(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}
