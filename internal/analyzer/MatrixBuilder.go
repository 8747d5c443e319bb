/*

This file builds the CLF matrix for one collateral asset: volatility and
liquidity estimates over every configured lookback span, then the CLF
formula for every (volatility span, liquidity span) pair.

*/

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// BlockResolver maps a unix timestamp to the chain block height current at
// that time.
type BlockResolver interface {
	BlockForTimestamp(ctx context.Context, unixSeconds int64) (uint64, error)
}

// VolatilitySource serves historical exchange-rate volatility estimates
// over a block window.
type VolatilitySource interface {
	Volatility(ctx context.Context, fromAsset, toAsset string, startBlock, endBlock uint64) (float64, error)
}

// MatrixBuilder computes the full CLF matrix for one collateral asset
// against its market's base asset.
type MatrixBuilder struct {
	spans  []int
	blocks BlockResolver
	vols   VolatilitySource
	router *LiquidityRouter
	logger zerolog.Logger
}

// NewMatrixBuilder validates dependencies and builds a MatrixBuilder over
// the configured span set.
func NewMatrixBuilder(spans []int, blocks BlockResolver, vols VolatilitySource, router *LiquidityRouter) (*MatrixBuilder, error) {
	if len(spans) == 0 {
		return nil, errors.New("span set cannot be empty")
	}
	for _, span := range spans {
		if span <= 0 {
			return nil, fmt.Errorf("span must be a positive number of days, got %d", span)
		}
	}
	if blocks == nil {
		return nil, errors.New("block resolver cannot be nil")
	}
	if vols == nil {
		return nil, errors.New("volatility source cannot be nil")
	}
	if router == nil {
		return nil, errors.New("liquidity router cannot be nil")
	}
	return &MatrixBuilder{
		spans:  spans,
		blocks: blocks,
		vols:   vols,
		router: router,
		logger: logger.GetForComponent("matrix_builder"),
	}, nil
}

// Spans returns the configured span set in order.
func (b *MatrixBuilder) Spans() []int {
	return b.spans
}

// Build computes volatility and liquidity estimates for every span ending
// at endBlock (window starts resolved relative to asOf), then fills the
// square matrix over span x span.
//
// A volatility or block-resolution failure fails the whole asset: the
// caller records a nil AssetResult. An unresolved liquidity route only
// blanks the cells of that liquidity span; resolved-but-zero liquidity
// produces a defined score of 0.
func (b *MatrixBuilder) Build(ctx context.Context, params types.RiskParameters, fromAsset, toAsset string, endBlock uint64, asOf time.Time) (types.CLFMatrix, error) {
	volatilityBySpan := make(map[int]float64, len(b.spans))
	liquidityBySpan := make(map[int]float64, len(b.spans))
	liquidityResolved := make(map[int]bool, len(b.spans))

	for _, span := range b.spans {
		windowStart := asOf.Add(-time.Duration(span) * 24 * time.Hour)
		startBlock, err := b.blocks.BlockForTimestamp(ctx, windowStart.Unix())
		if err != nil {
			return nil, fmt.Errorf("resolving start block for %d day span: %w", span, err)
		}
		if startBlock > endBlock {
			return nil, fmt.Errorf("start block %d beyond end block %d for %d day span", startBlock, endBlock, span)
		}

		volatility, err := b.vols.Volatility(ctx, fromAsset, toAsset, startBlock, endBlock)
		if err != nil {
			return nil, fmt.Errorf("volatility estimate for %d day span: %w", span, err)
		}
		if math.IsNaN(volatility) || math.IsInf(volatility, 0) || volatility < 0 {
			return nil, fmt.Errorf("volatility estimate for %d day span is invalid: %f", span, volatility)
		}
		volatilityBySpan[span] = volatility

		depth, ok := b.router.Route(ctx, fromAsset, toAsset, startBlock, endBlock, params.LiquidationBonusBps)
		liquidityBySpan[span] = depth
		liquidityResolved[span] = ok

		b.logger.Debug().
			Str("from", fromAsset).
			Str("to", toAsset).
			Int("span", span).
			Uint64("startBlock", startBlock).
			Uint64("endBlock", endBlock).
			Float64("volatility", volatility).
			Float64("liquidity", depth).
			Bool("liquidityResolved", ok).
			Msg("Span estimates computed")
	}

	bonusFraction := float64(params.LiquidationBonusBps) / 10000

	matrix := make(types.CLFMatrix, len(b.spans))
	for _, volatilitySpan := range b.spans {
		row := make(map[int]types.Score, len(b.spans))
		for _, liquiditySpan := range b.spans {
			if !liquidityResolved[liquiditySpan] {
				row[liquiditySpan] = types.Score{}
				continue
			}
			score, err := CalculateCLF(
				liquidityBySpan[liquiditySpan],
				volatilityBySpan[volatilitySpan],
				bonusFraction,
				params.LTV,
				params.SupplyCap,
			)
			if err != nil {
				return nil, fmt.Errorf("CLF cell (%d,%d): %w", volatilitySpan, liquiditySpan, err)
			}
			row[liquiditySpan] = score
		}
		matrix[volatilitySpan] = row
	}

	return matrix, nil
}
