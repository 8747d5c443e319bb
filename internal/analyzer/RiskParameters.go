/*

This file resolves raw on-chain risk fields into normalized risk parameters
for one collateral asset in one market.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/utils"
)

var ErrInvalidRiskFields = errors.New("invalid on-chain risk fields")

// ResolveRiskParameters converts the raw fixed-point risk fields into a
// normalized liquidation bonus (bps), LTV (percent), and supply cap (token
// units). Pure numeric transform, no I/O.
func ResolveRiskParameters(raw types.RawRiskFields, assetDecimals int) (types.RiskParameters, error) {
	liquidationFactor, err := utils.NormalizeFixedPoint(raw.LiquidationFactor, raw.FactorExponent)
	if err != nil {
		return types.RiskParameters{}, errors.Join(ErrInvalidRiskFields, fmt.Errorf("liquidation factor: %w", err))
	}

	collateralFactor, err := utils.NormalizeFixedPoint(raw.CollateralFactor, raw.FactorExponent)
	if err != nil {
		return types.RiskParameters{}, errors.Join(ErrInvalidRiskFields, fmt.Errorf("collateral factor: %w", err))
	}

	supplyCap, err := utils.NormalizeFixedPoint(raw.SupplyCap, assetDecimals)
	if err != nil {
		return types.RiskParameters{}, errors.Join(ErrInvalidRiskFields, fmt.Errorf("supply cap: %w", err))
	}

	// The liquidation factor is the fraction of collateral value a
	// liquidator pays for; the remainder is the liquidator's bonus.
	liquidationBonusBps := int(math.Round((1 - liquidationFactor) * 10000))
	if liquidationBonusBps < 0 {
		return types.RiskParameters{}, errors.Join(ErrInvalidRiskFields,
			fmt.Errorf("liquidation factor %f implies negative bonus", liquidationFactor))
	}

	ltv := collateralFactor * 100
	if ltv < 0 || ltv > 100 {
		return types.RiskParameters{}, errors.Join(ErrInvalidRiskFields,
			fmt.Errorf("collateral factor %f implies LTV outside [0,100]", collateralFactor))
	}

	return types.RiskParameters{
		LiquidationBonusBps: liquidationBonusBps,
		LTV:                 ltv,
		SupplyCap:           supplyCap,
	}, nil
}
