package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://coins.llama.fi", cfg.Sources.PriceOracleURL)
	assert.Equal(t, 30, cfg.Valuation.PeriodDays)
	assert.Equal(t, 10, cfg.Valuation.MaxTokensPerBatch)
	assert.Equal(t, 20, cfg.Valuation.MaxTimestampsPerBatch)
	assert.Equal(t, 10, cfg.Valuation.MaxConcurrentBatches)
	assert.Equal(t, 50*time.Millisecond, cfg.Valuation.WavePause)
	assert.Equal(t, 60*time.Second, cfg.Cache.ResponseTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VALUATION_PERIOD_DAYS", "90")
	t.Setenv("ORACLE_WAVE_PAUSE", "250ms")
	t.Setenv("ORACLE_REQUESTS_PER_SEC", "12.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 90, cfg.Valuation.PeriodDays)
	assert.Equal(t, 250*time.Millisecond, cfg.Valuation.WavePause)
	assert.Equal(t, 12.5, cfg.Valuation.OracleRequestsPerSec)
}

func TestLoadConfig_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("VALUATION_PERIOD_DAYS", "ninety")
	t.Setenv("ORACLE_WAVE_PAUSE", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Valuation.PeriodDays)
	assert.Equal(t, 50*time.Millisecond, cfg.Valuation.WavePause)
}
