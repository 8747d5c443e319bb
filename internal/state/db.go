// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Per-block liquidity depth snapshots, one row per slippage bucket.
		CREATE TABLE IF NOT EXISTS liquidity_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			from_symbol VARCHAR(32) NOT NULL,
			to_symbol VARCHAR(32) NOT NULL,
			block_number BIGINT NOT NULL,
			slippage_bps INTEGER NOT NULL,
			depth DECIMAL(38, 18) NOT NULL,
			average_price DECIMAL(38, 18) NOT NULL,
			CONSTRAINT uq_liquidity_snapshot UNIQUE (from_symbol, to_symbol, block_number, slippage_bps)
		);
		CREATE INDEX IF NOT EXISTS idx_liquidity_snapshots_pair_block
			ON liquidity_snapshots(from_symbol, to_symbol, block_number);

		-- Per-interval OHLC candles used for the volatility estimate.
		CREATE TABLE IF NOT EXISTS price_candles (
			candle_id SERIAL PRIMARY KEY,
			from_symbol VARCHAR(32) NOT NULL,
			to_symbol VARCHAR(32) NOT NULL,
			block_number BIGINT NOT NULL,
			open DECIMAL(38, 18) NOT NULL,
			high DECIMAL(38, 18) NOT NULL,
			low DECIMAL(38, 18) NOT NULL,
			close DECIMAL(38, 18) NOT NULL,
			CONSTRAINT uq_price_candle UNIQUE (from_symbol, to_symbol, block_number)
		);
		CREATE INDEX IF NOT EXISTS idx_price_candles_pair_block
			ON price_candles(from_symbol, to_symbol, block_number);

		-- Finished CLF runs, one row per run date.
		CREATE TABLE IF NOT EXISTS clf_runs (
			run_id SERIAL PRIMARY KEY,
			run_date DATE NOT NULL,
			end_block BIGINT NOT NULL,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_clf_runs_date UNIQUE (run_date)
		);
		CREATE INDEX IF NOT EXISTS idx_clf_runs_date ON clf_runs(run_date DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
