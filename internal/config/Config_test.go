package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NODE_RPC", "http://localhost:8545")
	t.Setenv("PRICE_API", "https://coins.llama.fi")
	t.Setenv("CLF_MARKETS", validMarketsJSON)
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "clf")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "clf")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultSpans, cfg.Spans)
	require.Equal(t, DefaultPivotAssets, cfg.PivotAssets)
	require.Equal(t, 24*time.Hour, cfg.RunInterval)
	require.Equal(t, 4, cfg.AssetConcurrency)
	require.Equal(t, "ethereum", cfg.PriceChain)
	require.Equal(t, "8080", cfg.WebPort)
	require.Equal(t, "disable", cfg.DB.SSLMode)
	require.Len(t, cfg.Markets, 1)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLF_SPANS", "1, 14, 90")
	t.Setenv("CLF_PIVOT_ASSETS", "WETH,DAI")
	t.Setenv("RUN_INTERVAL", "6h")
	t.Setenv("ASSET_CONCURRENCY", "8")
	t.Setenv("PRICE_CHAIN", "arbitrum")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []int{1, 14, 90}, cfg.Spans)
	require.Equal(t, []string{"WETH", "DAI"}, cfg.PivotAssets)
	require.Equal(t, 6*time.Hour, cfg.RunInterval)
	require.Equal(t, 8, cfg.AssetConcurrency)
	require.Equal(t, "arbitrum", cfg.PriceChain)
}

func TestLoadMissingRequiredVariable(t *testing.T) {
	setRequiredEnv(t)
	// t.Setenv registers the restore; unset on top of it.
	t.Setenv("NODE_RPC", "")
	os.Unsetenv("NODE_RPC")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidDBPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidTuning(t *testing.T) {
	cases := map[string][2]string{
		"bad span":        {"CLF_SPANS", "7,abc"},
		"duplicate span":  {"CLF_SPANS", "7,7"},
		"zero span":       {"CLF_SPANS", "0"},
		"bad interval":    {"RUN_INTERVAL", "often"},
		"bad concurrency": {"ASSET_CONCURRENCY", "-2"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}
