// ./internal/state/volatility_store.go
package state

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
)

// ErrInsufficientCandles indicates that no usable candles were recorded
// for the pair over the requested block range.
var ErrInsufficientCandles = errors.New("insufficient candle data to estimate volatility")

// VolatilityStore computes Parkinson historical volatility from the
// recorded OHLC candles. It satisfies the analyzer's VolatilitySource.
type VolatilityStore struct {
	logger zerolog.Logger
}

// NewVolatilityStore creates a store over the global database connection.
func NewVolatilityStore() *VolatilityStore {
	return &VolatilityStore{logger: logger.GetForComponent("volatility_store")}
}

// Volatility estimates the exchange-rate volatility of the ordered pair
// over [startBlock, endBlock] using the Parkinson high/low estimator:
//
//	vol = sqrt( (1 / (4 ln 2)) * mean(ln(high/low)^2) )
//
// Candles with non-positive highs or lows are skipped rather than breaking
// the estimate.
func (s *VolatilityStore) Volatility(ctx context.Context, fromAsset, toAsset string, startBlock, endBlock uint64) (float64, error) {
	if DB == nil {
		return 0, errors.New("database not initialized")
	}
	if startBlock > endBlock {
		return 0, fmt.Errorf("start block %d after end block %d", startBlock, endBlock)
	}

	query := `
		SELECT high, low
		FROM price_candles
		WHERE from_symbol = $1 AND to_symbol = $2
		  AND block_number BETWEEN $3 AND $4
		ORDER BY block_number;
	`
	rows, err := DB.QueryContext(ctx, query, fromAsset, toAsset, int64(startBlock), int64(endBlock))
	if err != nil {
		return 0, fmt.Errorf("candle query failed: %w", err)
	}
	defer rows.Close()

	sumSquaredRange := 0.0
	usable := 0
	skipped := 0

	for rows.Next() {
		var high, low float64
		if err := rows.Scan(&high, &low); err != nil {
			return 0, fmt.Errorf("scanning candle row: %w", err)
		}
		if high <= 0 || low <= 0 || high < low {
			skipped++
			continue
		}
		logRange := math.Log(high / low)
		sumSquaredRange += logRange * logRange
		usable++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating candle rows: %w", err)
	}

	if usable == 0 {
		return 0, fmt.Errorf("%w: pair %s/%s over blocks [%d, %d]", ErrInsufficientCandles, fromAsset, toAsset, startBlock, endBlock)
	}

	volatility := math.Sqrt(sumSquaredRange / (4 * math.Ln2 * float64(usable)))

	s.logger.Debug().
		Str("from", fromAsset).
		Str("to", toAsset).
		Uint64("startBlock", startBlock).
		Uint64("endBlock", endBlock).
		Int("usableCandles", usable).
		Int("skippedCandles", skipped).
		Float64("volatility", volatility).
		Msg("Parkinson volatility estimated")

	return volatility, nil
}

// RecordCandle stores one OHLC candle. Used by the ingestion side of the
// history store and by the dev tooling.
func (s *VolatilityStore) RecordCandle(ctx context.Context, fromAsset, toAsset string, blockNumber uint64, open, high, low, close float64) error {
	if DB == nil {
		return errors.New("database not initialized")
	}

	query := `
		INSERT INTO price_candles (from_symbol, to_symbol, block_number, open, high, low, close)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT uq_price_candle
		DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close;
	`
	_, err := DB.ExecContext(ctx, query, fromAsset, toAsset, int64(blockNumber), open, high, low, close)
	if err != nil {
		return fmt.Errorf("failed to record candle: %w", err)
	}
	return nil
}
