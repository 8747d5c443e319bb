/*

This file contains the liquidity router: collateral/borrow-asset pairs
rarely trade directly in sufficient depth, so the router supplements the
direct estimate with two-hop estimates routed through widely traded pivot
assets. Missing data for a pivot degrades the route, it never fails it.

*/

package analyzer

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// LiquiditySource serves aggregated liquidity estimates from the dex
// history store. A pair with no observations over the range returns
// types.ErrNoLiquidityData.
type LiquiditySource interface {
	Liquidity(ctx context.Context, fromAsset, toAsset string, startBlock, endBlock uint64) (types.LiquidityData, error)
}

// TwoHopCombiner converts a two-segment route into an equivalent
// single-hop volume at the target slippage.
type TwoHopCombiner func(segment1, segment2 types.LiquidityData, targetSlippageBps int) float64

// LiquidityRouter aggregates the direct liquidity estimate for a pair with
// two-hop contributions through the configured pivot assets.
type LiquidityRouter struct {
	source  LiquiditySource
	pivots  []string
	combine TwoHopCombiner
	logger  zerolog.Logger
}

// NewLiquidityRouter builds a router over the given history source and
// pivot set. A nil combiner falls back to CombineTwoHopVolume.
func NewLiquidityRouter(source LiquiditySource, pivots []string, combine TwoHopCombiner) (*LiquidityRouter, error) {
	if source == nil {
		return nil, errors.New("liquidity source cannot be nil")
	}
	if combine == nil {
		combine = CombineTwoHopVolume
	}
	return &LiquidityRouter{
		source:  source,
		pivots:  pivots,
		combine: combine,
		logger:  logger.GetForComponent("liquidity_router"),
	}, nil
}

// Route returns the aggregated depth available for selling fromAsset into
// toAsset within the target slippage over [startBlock, endBlock], in
// fromAsset units. The boolean reports whether any estimate resolved at
// all: a route where neither the direct market nor any pivot had data is
// absent, which is distinct from a resolved depth of zero.
func (r *LiquidityRouter) Route(ctx context.Context, fromAsset, toAsset string, startBlock, endBlock uint64, targetSlippageBps int) (float64, bool) {
	total := 0.0
	resolved := false

	direct, err := r.source.Liquidity(ctx, fromAsset, toAsset, startBlock, endBlock)
	switch {
	case err == nil:
		total += direct.DepthAt(targetSlippageBps)
		resolved = true
	case errors.Is(err, types.ErrNoLiquidityData):
		r.logger.Debug().
			Str("from", fromAsset).
			Str("to", toAsset).
			Uint64("startBlock", startBlock).
			Uint64("endBlock", endBlock).
			Msg("No direct liquidity data for pair")
	default:
		r.logger.Warn().
			Err(err).
			Str("from", fromAsset).
			Str("to", toAsset).
			Msg("Direct liquidity lookup failed, continuing with pivots only")
	}

	// Same-asset routes are an identity: direct estimate only.
	if fromAsset == toAsset {
		return total, resolved
	}

	for _, pivot := range r.pivots {
		if pivot == fromAsset || pivot == toAsset {
			continue
		}

		segment1, err := r.source.Liquidity(ctx, fromAsset, pivot, startBlock, endBlock)
		if err != nil {
			r.logPivotSkip(err, fromAsset, toAsset, pivot, "first segment")
			continue
		}
		segment2, err := r.source.Liquidity(ctx, pivot, toAsset, startBlock, endBlock)
		if err != nil {
			r.logPivotSkip(err, fromAsset, toAsset, pivot, "second segment")
			continue
		}

		contribution := r.combine(segment1, segment2, targetSlippageBps)
		if math.IsNaN(contribution) || math.IsInf(contribution, 0) || contribution < 0 {
			r.logger.Warn().
				Str("from", fromAsset).
				Str("to", toAsset).
				Str("pivot", pivot).
				Float64("contribution", contribution).
				Msg("Discarding invalid two-hop contribution")
			continue
		}

		total += contribution
		resolved = true

		r.logger.Debug().
			Str("from", fromAsset).
			Str("to", toAsset).
			Str("pivot", pivot).
			Float64("contribution", contribution).
			Msg("Pivot route resolved")
	}

	return total, resolved
}

func (r *LiquidityRouter) logPivotSkip(err error, fromAsset, toAsset, pivot, segment string) {
	event := r.logger.Warn()
	if errors.Is(err, types.ErrNoLiquidityData) {
		event = r.logger.Debug()
	}
	event.
		Err(err).
		Str("from", fromAsset).
		Str("to", toAsset).
		Str("pivot", pivot).
		Str("segment", segment).
		Msg("Skipping pivot route")
}

// CombineTwoHopVolume converts two route segments into an equivalent
// single-hop volume at the target slippage. The slippage budget is split
// evenly across the two hops, and the tighter hop binds: the second
// segment's depth (in pivot units) is converted to fromAsset units via the
// first segment's average exchange rate before taking the minimum.
func CombineTwoHopVolume(segment1, segment2 types.LiquidityData, targetSlippageBps int) float64 {
	if targetSlippageBps <= 0 || segment1.AveragePrice <= 0 {
		return 0
	}

	halfSlippage := targetSlippageBps / 2
	depth1 := segment1.DepthAt(halfSlippage)
	depth2 := segment2.DepthAt(halfSlippage)
	if depth1 <= 0 || depth2 <= 0 {
		return 0
	}

	depth2InFromUnits := depth2 / segment1.AveragePrice
	return math.Min(depth1, depth2InFromUnits)
}
