/*

This is a custom type for assets and markets which contains all the state
needed for computing Collateral Liquidity Factors.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

type Asset struct {
	Symbol   string `json:"symbol"`   // e.g., "WETH"
	Address  string `json:"address"`  // e.g., "0xC02a...6Cc2"
	Decimals int    `json:"decimals"` // e.g., 18
}

// Market is one lending pool: a base (borrow) asset plus the collateral
// assets the pool accepts against it.
type Market struct {
	ID          string  `json:"id"`    // e.g., "mainnet-usdc"
	Comet       string  `json:"comet"` // pool contract address
	BaseAsset   Asset   `json:"base_asset"`
	Collaterals []Asset `json:"collaterals"`
}

// RawRiskFields are the on-chain risk parameters for one collateral asset,
// exactly as returned by the pool contract: fixed-point integers with a
// known decimal exponent.
type RawRiskFields struct {
	LiquidationFactor sdkmath.Int `json:"liquidation_factor"` // fixed-point, FactorExponent decimals
	CollateralFactor  sdkmath.Int `json:"collateral_factor"`  // fixed-point, FactorExponent decimals
	SupplyCap         sdkmath.Int `json:"supply_cap"`         // fixed-point, asset decimals
	FactorExponent    int         `json:"factor_exponent"`    // decimal exponent of the two factors
}

// RiskParameters are the normalized risk parameters for one collateral
// asset in one market. Derived once per asset per run, immutable afterward.
type RiskParameters struct {
	LiquidationBonusBps int     `json:"liquidation_bonus_bps"` // e.g., 700 for a 7% liquidator discount
	LTV                 float64 `json:"ltv"`                    // percent, 0 to 100
	SupplyCap           float64 `json:"supply_cap"`             // token units
}
