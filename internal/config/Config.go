package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment
// variables. It is built once at startup by Load and passed explicitly to
// every component that needs it; nothing reads ambient state afterward.
type Config struct {
	// LogLevel is the zerolog level name ("debug", "info", "warn", "error").
	LogLevel string

	// NodeRPC is the JSON-RPC endpoint of the chain node.
	NodeRPC string
	// PriceAPI is the base URL of the spot price feed.
	PriceAPI string
	// PriceChain is the chain slug used to key assets on the price feed.
	PriceChain string
	// WebPort is the port for the results/health HTTP server.
	WebPort string

	// Spans is the ordered set of lookback windows, in days. Every CLF
	// matrix is indexed by exactly these values on both axes.
	Spans []int
	// PivotAssets is the ordered set of intermediate assets the liquidity
	// router may hop through when no direct market exists.
	PivotAssets []string

	// RunInterval is the cadence of the scheduled run loop.
	RunInterval time.Duration
	// AssetConcurrency bounds how many collateral assets are computed at
	// the same time within one market.
	AssetConcurrency int

	// Markets are the lending pools to score, parsed from CLF_MARKETS.
	Markets MarketSet

	// DB holds the PostgreSQL connection parameters for the history store.
	DB DBConfig
}

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// Load reads all configuration from environment variables. Endpoints,
// database parameters, and the market set are required; tuning knobs fall
// back to defaults. A missing required variable is a hard error and aborts
// the run before any market is processed.
func Load() (*Config, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	cfg := &Config{
		LogLevel:         getEnvOr("LOG_LEVEL", "info"),
		WebPort:          getEnvOr("WEB_PORT", "8080"),
		Spans:            DefaultSpans,
		PivotAssets:      DefaultPivotAssets,
		RunInterval:      24 * time.Hour,
		AssetConcurrency: 4,
	}

	var err error

	cfg.NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return nil, err
	}

	cfg.PriceAPI, err = getEnv("PRICE_API")
	if err != nil {
		return nil, err
	}
	cfg.PriceChain = getEnvOr("PRICE_CHAIN", "ethereum")

	if raw, ok := lookupEnv("CLF_SPANS"); ok {
		cfg.Spans, err = parseSpans(raw)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := lookupEnv("CLF_PIVOT_ASSETS"); ok {
		cfg.PivotAssets = splitList(raw)
		if len(cfg.PivotAssets) == 0 {
			return nil, errors.New("environment variable CLF_PIVOT_ASSETS must not be empty when set")
		}
	}

	if raw, ok := lookupEnv("RUN_INTERVAL"); ok {
		cfg.RunInterval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, errors.New("environment variable RUN_INTERVAL must be a valid duration, got: " + raw)
		}
	}

	if raw, ok := lookupEnv("ASSET_CONCURRENCY"); ok {
		cfg.AssetConcurrency, err = strconv.Atoi(raw)
		if err != nil || cfg.AssetConcurrency <= 0 {
			return nil, errors.New("environment variable ASSET_CONCURRENCY must be a positive integer, got: " + raw)
		}
	}

	marketsJSON, err := getEnv("CLF_MARKETS")
	if err != nil {
		return nil, err
	}
	cfg.Markets, err = ParseMarkets(marketsJSON)
	if err != nil {
		return nil, err
	}

	if err := loadDBConfig(&cfg.DB); err != nil {
		return nil, err
	}

	log.Debug().
		Str("NodeRPC", cfg.NodeRPC).
		Str("PriceAPI", cfg.PriceAPI).
		Ints("Spans", cfg.Spans).
		Strs("PivotAssets", cfg.PivotAssets).
		Int("Markets", len(cfg.Markets)).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// loadDBConfig loads PostgreSQL connection parameters.
func loadDBConfig(db *DBConfig) error {
	var err error

	db.Host, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}
	portStr, err := getEnv("DB_PORT")
	if err != nil {
		return err
	}
	db.Port, err = strconv.Atoi(portStr)
	if err != nil {
		return errors.New("environment variable DB_PORT must be a valid integer, got: " + portStr)
	}
	db.User, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	db.Password, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}
	db.DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	db.SSLMode = getEnvOr("DB_SSLMODE", "disable")

	return nil
}

func parseSpans(raw string) ([]int, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, errors.New("environment variable CLF_SPANS must not be empty when set")
	}
	spans := make([]int, 0, len(parts))
	seen := make(map[int]bool)
	for _, p := range parts {
		span, err := strconv.Atoi(p)
		if err != nil || span <= 0 {
			return nil, errors.New("environment variable CLF_SPANS must contain positive integers, got: " + p)
		}
		if seen[span] {
			return nil, errors.New("environment variable CLF_SPANS contains duplicate span: " + p)
		}
		seen[span] = true
		spans = append(spans, span)
	}
	return spans, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
