/*

Types describing historical market liquidity, as served by the dex history
store: depth available per slippage tolerance bucket plus the average
exchange rate over the window.

*/

package types

import "errors"

// ErrNoLiquidityData indicates the history store holds no observations for
// the requested pair and block range. Callers treat this as "no data",
// which is distinct from a resolved depth of zero.
var ErrNoLiquidityData = errors.New("no liquidity data for pair over block range")

// Slippage buckets are kept in 50 bps steps, mirroring how depth snapshots
// are recorded.
const (
	SlippageBucketStepBps = 50
	MinSlippageBucketBps  = 50
	MaxSlippageBucketBps  = 2000
)

// LiquidityData is an aggregated liquidity estimate for one ordered pair
// over one block window.
type LiquidityData struct {
	DepthBySlippageBps map[int]float64 `json:"depth_by_slippage_bps"` // base-asset units available within each slippage tolerance
	AveragePrice       float64         `json:"average_price"`         // average quote/base exchange rate over the window
}

// DepthAt returns the depth available within the target slippage tolerance.
// The target is clamped down to the nearest recorded bucket so the estimate
// never assumes more slippage tolerance than the caller allows. Returns 0
// if the target sits below every recorded bucket.
func (d LiquidityData) DepthAt(targetSlippageBps int) float64 {
	if targetSlippageBps <= 0 || len(d.DepthBySlippageBps) == 0 {
		return 0
	}
	best := -1
	for bucket := range d.DepthBySlippageBps {
		if bucket <= targetSlippageBps && bucket > best {
			best = bucket
		}
	}
	if best < 0 {
		return 0
	}
	return d.DepthBySlippageBps[best]
}
