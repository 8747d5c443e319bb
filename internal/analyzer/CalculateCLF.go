/*

This file contains the CLF formula itself: the risk budget granted by the
protocol's risk parameters, scaled by how much market depth is available
per unit of volatility.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

var ErrInvalidCLFInput = errors.New("invalid CLF input")

// CalculateCLF evaluates the Collateral Liquidity Factor for one
// (volatility, liquidity) observation and one asset's risk parameters:
//
//	CLF = -ln(LTV/100 + liquidationBonus) * sqrt(liquidity/supplyCap) / volatility
//
// Inputs:
//   - liquidity: market depth in base-asset units, >= 0.
//   - volatility: historical volatility of the exchange rate, >= 0.
//   - liquidationBonus: liquidator discount as a fraction (700 bps -> 0.07).
//   - ltv: loan-to-value in percent.
//   - supplyCap: collateral cap in token units.
//
// Degenerate inputs (zero supply cap, zero volatility, non-positive
// ltv/100+bonus) yield an undefined Score rather than NaN or Inf; malformed
// inputs (negative, non-finite) are errors.
func CalculateCLF(liquidity, volatility, liquidationBonus, ltv, supplyCap float64) (types.Score, error) {
	inputs := []struct {
		value float64
		name  string
	}{
		{liquidity, "liquidity"},
		{volatility, "volatility"},
		{liquidationBonus, "liquidation bonus"},
		{ltv, "LTV"},
		{supplyCap, "supply cap"},
	}
	for _, in := range inputs {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			return types.Score{}, errors.Join(ErrInvalidCLFInput, errors.New(in.name+" is not finite"))
		}
	}
	if liquidity < 0 {
		return types.Score{}, errors.Join(ErrInvalidCLFInput, errors.New("liquidity cannot be negative"))
	}
	if volatility < 0 {
		return types.Score{}, errors.Join(ErrInvalidCLFInput, errors.New("volatility cannot be negative"))
	}
	if liquidationBonus < 0 {
		return types.Score{}, errors.Join(ErrInvalidCLFInput, errors.New("liquidation bonus cannot be negative"))
	}
	if ltv < 0 || ltv > 100 {
		return types.Score{}, errors.Join(ErrInvalidCLFInput, fmt.Errorf("LTV %f outside [0,100]", ltv))
	}
	if supplyCap < 0 {
		return types.Score{}, errors.Join(ErrInvalidCLFInput, errors.New("supply cap cannot be negative"))
	}

	// Degenerate denominators and a non-positive log argument make the
	// score undefined, not an error: the asset still appears in the run
	// with an explicit absent cell.
	ltvFraction := ltv / 100
	if supplyCap == 0 || volatility == 0 || ltvFraction+liquidationBonus <= 0 {
		return types.Score{}, nil
	}

	depthRatio := math.Sqrt(liquidity / supplyCap)
	depthRatioOverVol := depthRatio / volatility
	riskBudget := math.Log(ltvFraction + liquidationBonus)
	clf := -1 * riskBudget * depthRatioOverVol

	if math.IsNaN(clf) || math.IsInf(clf, 0) {
		return types.Score{}, nil
	}

	return types.DefinedScore(clf), nil
}
