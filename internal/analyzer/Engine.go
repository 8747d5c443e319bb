/*

This file contains the CLF engine: the single top-level entry point that
derives per-asset CLF matrices for every market and rolls them up into
pool-level and protocol-level weighted scores.

Failures are recovered as close to their origin as possible: a collaborator
failure for one collateral asset yields a nil AssetResult for that asset
only, a failed pool aggregation leaves the pool's per-asset data intact,
and a failed protocol aggregation still returns every pool result.

*/

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/utils"
)

// ChainReader serves point-in-time on-chain state for the scored markets.
type ChainReader interface {
	CurrentBlockNumber(ctx context.Context) (uint64, error)
	AssetRiskFields(ctx context.Context, market types.Market, assetIndex int) (types.RawRiskFields, error)
	CollateralSupply(ctx context.Context, market types.Market, asset types.Asset) (sdkmath.Int, error)
}

// HistoricalChainReader is optionally implemented by chain readers that
// can serve state as of a past block, enabling historical replay runs.
type HistoricalChainReader interface {
	ChainReader
	AtBlock(block uint64) ChainReader
}

// PriceSource serves spot USD prices. A failed lookup is substituted with
// a price of 0 by the engine (zero collateral weight, not an error).
type PriceSource interface {
	SpotPriceUSD(ctx context.Context, asset types.Asset) (float64, error)
}

// Engine computes ProtocolResults. All collaborators are injected; given
// deterministic collaborator responses the output is deterministic.
type Engine struct {
	chain   ChainReader
	blocks  BlockResolver
	prices  PriceSource
	builder *MatrixBuilder

	assetConcurrency int
	logger           zerolog.Logger
}

// EngineConfig holds the dependencies for creating an Engine.
type EngineConfig struct {
	ChainReader   ChainReader
	BlockResolver BlockResolver
	PriceSource   PriceSource
	MatrixBuilder *MatrixBuilder

	// AssetConcurrency bounds parallel asset computations within a market.
	// Values below 1 fall back to sequential processing.
	AssetConcurrency int
}

// NewEngine validates dependencies and creates an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.ChainReader == nil {
		return nil, errors.New("chain reader cannot be nil")
	}
	if cfg.BlockResolver == nil {
		return nil, errors.New("block resolver cannot be nil")
	}
	if cfg.PriceSource == nil {
		return nil, errors.New("price source cannot be nil")
	}
	if cfg.MatrixBuilder == nil {
		return nil, errors.New("matrix builder cannot be nil")
	}

	concurrency := cfg.AssetConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Engine{
		chain:            cfg.ChainReader,
		blocks:           cfg.BlockResolver,
		prices:           cfg.PriceSource,
		builder:          cfg.MatrixBuilder,
		assetConcurrency: concurrency,
		logger:           logger.GetForComponent("clf_engine"),
	}, nil
}

// EndBlockFor resolves the end block for a run as of the given time. A
// zero asOf resolves the current chain head; any other time is mapped to
// the last block at or before it.
func (e *Engine) EndBlockFor(ctx context.Context, asOf time.Time) (uint64, error) {
	if asOf.IsZero() {
		head, err := e.chain.CurrentBlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("resolving current block: %w", err)
		}
		return head, nil
	}
	block, err := e.blocks.BlockForTimestamp(ctx, asOf.Unix())
	if err != nil {
		return 0, fmt.Errorf("resolving block for %s: %w", asOf.Format(time.RFC3339), err)
	}
	return block, nil
}

// ComputeProtocolResult computes the full CLF result for the given markets
// as of asOf. A zero asOf means "now": the end block is the current chain
// head. A non-zero asOf replays a historical date, resolving the end block
// from the timestamp.
//
// The returned error is non-nil only when the end block itself cannot be
// resolved; every later failure is isolated to its asset or pool and
// reported as absence inside the result.
func (e *Engine) ComputeProtocolResult(ctx context.Context, markets []types.Market, asOf time.Time) (types.ProtocolResult, error) {
	endBlock, err := e.EndBlockFor(ctx, asOf)
	if err != nil {
		return types.ProtocolResult{}, err
	}

	chain := e.chain
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	} else if historical, ok := e.chain.(HistoricalChainReader); ok {
		// Replay runs read contract state as of the historical block when
		// the reader supports it.
		chain = historical.AtBlock(endBlock)
	}

	e.logger.Info().
		Time("asOf", asOf).
		Uint64("endBlock", endBlock).
		Int("markets", len(markets)).
		Msg("Starting CLF computation run")

	result := types.ProtocolResult{
		Results: make(map[string]*types.PoolResult, len(markets)),
	}

	for _, market := range markets {
		poolResult := e.computePool(ctx, chain, market, endBlock, asOf)
		result.Results[market.BaseAsset.Symbol] = poolResult
	}

	protocolScore, err := AggregateProtocol(result.Results)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Msg("Protocol aggregation undefined, reporting score as absent")
	} else {
		result.WeightedCLF = &protocolScore
	}

	e.logger.Info().
		Uint64("endBlock", endBlock).
		Bool("protocolScoreDefined", result.WeightedCLF != nil).
		Msg("CLF computation run complete")

	return result, nil
}

// computePool computes every collateral asset of one market as an
// independent task, then aggregates. Asset tasks never propagate errors:
// a failed asset is recorded as a nil AssetResult and siblings continue.
func (e *Engine) computePool(ctx context.Context, chain ChainReader, market types.Market, endBlock uint64, asOf time.Time) *types.PoolResult {
	poolLogger := e.logger.With().Str("market", market.ID).Logger()
	poolLogger.Info().
		Str("baseAsset", market.BaseAsset.Symbol).
		Int("collaterals", len(market.Collaterals)).
		Msg("Computing pool")

	data := make(map[string]*types.AssetResult, len(market.Collaterals))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.assetConcurrency)

	for index, asset := range market.Collaterals {
		group.Go(func() error {
			assetResult, err := e.computeAsset(groupCtx, chain, market, index, asset, endBlock, asOf)
			if err != nil {
				poolLogger.Error().
					Err(err).
					Str("asset", asset.Symbol).
					Msg("Asset computation failed, recording null result")
				assetResult = nil
			}
			mu.Lock()
			data[asset.Symbol] = assetResult
			mu.Unlock()
			return nil
		})
	}
	// Tasks record their own failures; the group never returns an error.
	_ = group.Wait()

	result := &types.PoolResult{Data: data}

	weighted, totalCollateral, err := AggregatePool(data, e.builder.Spans()[0])
	result.TotalCollateral = totalCollateral
	if err != nil {
		poolLogger.Warn().
			Err(err).
			Msg("Pool aggregation undefined, reporting score as absent")
		return result
	}
	result.WeightedCLF = &weighted

	poolLogger.Info().
		Float64("weightedCLF", weighted).
		Float64("totalCollateral", totalCollateral).
		Msg("Pool computed")

	return result
}

// computeAsset derives one collateral asset's risk parameters, collateral
// value, and CLF matrix.
func (e *Engine) computeAsset(ctx context.Context, chain ChainReader, market types.Market, assetIndex int, asset types.Asset, endBlock uint64, asOf time.Time) (*types.AssetResult, error) {
	raw, err := chain.AssetRiskFields(ctx, market, assetIndex)
	if err != nil {
		return nil, fmt.Errorf("fetching risk fields: %w", err)
	}

	params, err := ResolveRiskParameters(raw, asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("resolving risk parameters: %w", err)
	}

	supplyRaw, err := chain.CollateralSupply(ctx, market, asset)
	if err != nil {
		return nil, fmt.Errorf("fetching collateral supply: %w", err)
	}
	inKindSupply, err := utils.NormalizeFixedPoint(supplyRaw, asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("normalizing collateral supply: %w", err)
	}

	// A price lookup failure is not an error: the asset keeps its in-kind
	// supply but carries zero weight in the aggregates.
	price, err := e.prices.SpotPriceUSD(ctx, asset)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("market", market.ID).
			Str("asset", asset.Symbol).
			Msg("Spot price lookup failed, substituting 0")
		price = 0
	}

	matrix, err := e.builder.Build(ctx, params, asset.Symbol, market.BaseAsset.Symbol, endBlock, asOf)
	if err != nil {
		return nil, fmt.Errorf("building CLF matrix: %w", err)
	}

	return &types.AssetResult{
		Collateral: types.CollateralAmount{
			InKindSupply: inKindSupply,
			UsdSupply:    inKindSupply * price,
		},
		CLFs: matrix,
	}, nil
}
