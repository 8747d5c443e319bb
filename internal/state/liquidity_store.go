// ./internal/state/liquidity_store.go
package state

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// LiquidityStore serves aggregated liquidity estimates from the recorded
// depth snapshots. It satisfies the analyzer's LiquiditySource.
type LiquidityStore struct {
	logger zerolog.Logger
}

// NewLiquidityStore creates a store over the global database connection.
func NewLiquidityStore() *LiquidityStore {
	return &LiquidityStore{logger: logger.GetForComponent("liquidity_store")}
}

// Liquidity averages the recorded depth per slippage bucket and the
// recorded exchange rate over [startBlock, endBlock] for the ordered pair.
// A pair with no snapshots in the range returns types.ErrNoLiquidityData.
func (s *LiquidityStore) Liquidity(ctx context.Context, fromAsset, toAsset string, startBlock, endBlock uint64) (types.LiquidityData, error) {
	if DB == nil {
		return types.LiquidityData{}, errors.New("database not initialized")
	}
	if startBlock > endBlock {
		return types.LiquidityData{}, fmt.Errorf("start block %d after end block %d", startBlock, endBlock)
	}

	query := `
		SELECT slippage_bps, AVG(depth), AVG(average_price)
		FROM liquidity_snapshots
		WHERE from_symbol = $1 AND to_symbol = $2
		  AND block_number BETWEEN $3 AND $4
		GROUP BY slippage_bps
		ORDER BY slippage_bps;
	`
	rows, err := DB.QueryContext(ctx, query, fromAsset, toAsset, int64(startBlock), int64(endBlock))
	if err != nil {
		return types.LiquidityData{}, fmt.Errorf("liquidity snapshot query failed: %w", err)
	}
	defer rows.Close()

	depthByBucket := make(map[int]float64)
	priceSum := 0.0
	buckets := 0

	for rows.Next() {
		var bucket int
		var depth, avgPrice float64
		if err := rows.Scan(&bucket, &depth, &avgPrice); err != nil {
			return types.LiquidityData{}, fmt.Errorf("scanning liquidity snapshot row: %w", err)
		}
		if math.IsNaN(depth) || math.IsInf(depth, 0) || depth < 0 {
			s.logger.Warn().
				Str("from", fromAsset).
				Str("to", toAsset).
				Int("bucket", bucket).
				Float64("depth", depth).
				Msg("Skipping invalid depth aggregate")
			continue
		}
		depthByBucket[bucket] = depth
		priceSum += avgPrice
		buckets++
	}
	if err := rows.Err(); err != nil {
		return types.LiquidityData{}, fmt.Errorf("iterating liquidity snapshot rows: %w", err)
	}

	if buckets == 0 {
		return types.LiquidityData{}, types.ErrNoLiquidityData
	}

	data := types.LiquidityData{
		DepthBySlippageBps: depthByBucket,
		AveragePrice:       priceSum / float64(buckets),
	}

	s.logger.Debug().
		Str("from", fromAsset).
		Str("to", toAsset).
		Uint64("startBlock", startBlock).
		Uint64("endBlock", endBlock).
		Int("buckets", buckets).
		Float64("averagePrice", data.AveragePrice).
		Msg("Liquidity estimate aggregated")

	return data, nil
}

// RecordSnapshot stores one depth observation. Used by the ingestion side
// of the history store and by the dev tooling.
func (s *LiquidityStore) RecordSnapshot(ctx context.Context, fromAsset, toAsset string, blockNumber uint64, slippageBps int, depth, averagePrice float64) error {
	if DB == nil {
		return errors.New("database not initialized")
	}

	query := `
		INSERT INTO liquidity_snapshots (from_symbol, to_symbol, block_number, slippage_bps, depth, average_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT uq_liquidity_snapshot
		DO UPDATE SET depth = EXCLUDED.depth, average_price = EXCLUDED.average_price;
	`
	_, err := DB.ExecContext(ctx, query, fromAsset, toAsset, int64(blockNumber), slippageBps, depth, averagePrice)
	if err != nil {
		return fmt.Errorf("failed to record liquidity snapshot: %w", err)
	}
	return nil
}
