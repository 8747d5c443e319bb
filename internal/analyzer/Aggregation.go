/*

This file rolls individual CLF matrices up into pool-level and
protocol-level weighted scores, weighting by USD-denominated collateral.

*/

package analyzer

import (
	"errors"
	"sort"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/utils"
)

// ErrNoCollateral indicates a weighted aggregate is undefined because the
// total collateral backing it is zero. Callers report the score as absent,
// never as 0.
var ErrNoCollateral = errors.New("total collateral is zero, weighted score undefined")

var aggregationLogger = logger.GetForComponent("aggregator")

// AggregatePool combines the asset results of one market into a single
// USD-collateral-weighted score. The representative cell for weighting is
// the shortest-window self-pairing (representativeSpan, representativeSpan),
// the most reactive signal in the matrix.
//
// Nil asset results and assets whose representative cell is undefined are
// excluded from both the numerator and the denominator of the weighting.
// Returns the weighted score (x100, rounded to 2 decimals) and the total
// USD collateral over non-nil assets.
func AggregatePool(data map[string]*types.AssetResult, representativeSpan int) (float64, float64, error) {
	totalCollateral := 0.0
	weightableCollateral := 0.0
	for _, result := range data {
		if result == nil {
			continue
		}
		totalCollateral += result.Collateral.UsdSupply
		if result.CLFs.Cell(representativeSpan, representativeSpan).Defined {
			weightableCollateral += result.Collateral.UsdSupply
		}
	}

	if weightableCollateral <= 0 {
		return 0, totalCollateral, ErrNoCollateral
	}

	// Iterate in sorted key order for deterministic float accumulation.
	symbols := make([]string, 0, len(data))
	for symbol := range data {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	weightedSum := 0.0
	for _, symbol := range symbols {
		result := data[symbol]
		if result == nil {
			continue
		}
		cell := result.CLFs.Cell(representativeSpan, representativeSpan)
		if !cell.Defined {
			aggregationLogger.Debug().
				Str("asset", symbol).
				Int("span", representativeSpan).
				Msg("Representative CLF cell undefined, asset excluded from pool weighting")
			continue
		}
		weight := result.Collateral.UsdSupply / weightableCollateral
		weightedSum += weight * cell.Value
	}

	return utils.Round2(weightedSum * 100), totalCollateral, nil
}

// AggregateProtocol combines all pool scores into one protocol-level
// weighted score. Pools whose own aggregation failed (nil WeightedCLF) are
// excluded from both numerator and denominator.
func AggregateProtocol(pools map[string]*types.PoolResult) (float64, error) {
	protocolCollateral := 0.0
	for _, pool := range pools {
		if pool == nil || pool.WeightedCLF == nil {
			continue
		}
		protocolCollateral += pool.TotalCollateral
	}

	if protocolCollateral <= 0 {
		return 0, ErrNoCollateral
	}

	// Iterate in sorted key order for deterministic float accumulation.
	ids := make([]string, 0, len(pools))
	for id := range pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	weightedSum := 0.0
	for _, id := range ids {
		pool := pools[id]
		if pool == nil || pool.WeightedCLF == nil {
			continue
		}
		weight := pool.TotalCollateral / protocolCollateral
		weightedSum += weight * (*pool.WeightedCLF)
	}

	return utils.Round2(weightedSum), nil
}
