/*

Result types for a single CLF computation run: per-asset matrices, per-pool
aggregates, and the protocol-level rollup. All entities are created fresh
for one run and discarded after the result is persisted.

*/

package types

import (
	"encoding/json"
	"time"
)

// Score is a CLF value that may be undefined. Degenerate inputs (zero
// supply cap, zero volatility, non-positive risk budget) and unresolved
// liquidity produce an undefined Score instead of NaN or Inf.
type Score struct {
	Value   float64
	Defined bool
}

// DefinedScore returns a Score carrying the given value.
func DefinedScore(v float64) Score {
	return Score{Value: v, Defined: true}
}

// MarshalJSON encodes an undefined Score as JSON null so absence survives
// serialization as a typed outcome.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = DefinedScore(v)
	return nil
}

// CLFMatrix maps volatility span -> liquidity span -> CLF score. Every
// matrix is fully populated over the configured span set on both axes.
type CLFMatrix map[int]map[int]Score

// Cell returns the score at (volatilitySpan, liquiditySpan), or an
// undefined Score when the cell is missing.
func (m CLFMatrix) Cell(volatilitySpan, liquiditySpan int) Score {
	row, ok := m[volatilitySpan]
	if !ok {
		return Score{}
	}
	return row[liquiditySpan]
}

// CollateralAmount is the supply of one collateral asset, in token units
// and in USD. A failed price lookup yields UsdSupply 0, never an error.
type CollateralAmount struct {
	InKindSupply float64 `json:"in_kind_supply"`
	UsdSupply    float64 `json:"usd_supply"`
}

// AssetResult is the computation outcome for one collateral asset. A nil
// *AssetResult marks a failed asset; it contributes zero weight and zero
// collateral to every aggregate.
type AssetResult struct {
	Collateral CollateralAmount `json:"collateral"`
	CLFs       CLFMatrix        `json:"clfs"`
}

// PoolResult holds all asset results for one market plus the weighted pool
// score. WeightedCLF is nil when the pool aggregate is undefined (zero
// total collateral or failed aggregation); per-asset data is still emitted.
type PoolResult struct {
	Data            map[string]*AssetResult `json:"data"`
	WeightedCLF     *float64                `json:"weighted_clf"`
	TotalCollateral float64                 `json:"total_collateral"`
}

// ProtocolResult is the top-level output of one run. WeightedCLF is nil
// when protocol aggregation is undefined; pool results remain valid.
type ProtocolResult struct {
	WeightedCLF *float64               `json:"weighted_clf"`
	Results     map[string]*PoolResult `json:"results"`
}

// RunRecord wraps a persisted ProtocolResult with its run metadata.
type RunRecord struct {
	RunDate   time.Time      `json:"run_date"`
	EndBlock  uint64         `json:"end_block"`
	Result    ProtocolResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}
