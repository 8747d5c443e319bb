package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// fakeLiquiditySource serves canned liquidity data keyed by "from/to".
// Pairs without an entry report no data.
type fakeLiquiditySource struct {
	data map[string]types.LiquidityData
	errs map[string]error
}

func (f *fakeLiquiditySource) Liquidity(_ context.Context, fromAsset, toAsset string, _, _ uint64) (types.LiquidityData, error) {
	key := fromAsset + "/" + toAsset
	if err, ok := f.errs[key]; ok {
		return types.LiquidityData{}, err
	}
	if data, ok := f.data[key]; ok {
		return data, nil
	}
	return types.LiquidityData{}, types.ErrNoLiquidityData
}

func depthData(price float64, buckets map[int]float64) types.LiquidityData {
	return types.LiquidityData{DepthBySlippageBps: buckets, AveragePrice: price}
}

func TestRouteDirectOnly(t *testing.T) {
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"LINK/USDC": depthData(15, map[int]float64{700: 60}),
	}}
	router, err := NewLiquidityRouter(source, nil, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 60.0, depth)
}

func TestRoutePivotSupplementsMissingDirectMarket(t *testing.T) {
	// No direct LINK/USDC market; the WETH pivot carries the route. The
	// 700 bps budget is split into 350 per hop, clamped down to the 300
	// bucket. The second hop's 100 WETH converts to 50 LINK at a rate of
	// 2 WETH per LINK, and the first hop's 40 LINK binds.
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"LINK/WETH": depthData(2, map[int]float64{300: 40}),
		"WETH/USDC": depthData(2500, map[int]float64{300: 100}),
	}}
	router, err := NewLiquidityRouter(source, []string{"WETH", "USDC"}, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 40.0, depth)
}

func TestRouteSumsDirectAndPivotContributions(t *testing.T) {
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"LINK/USDC": depthData(15, map[int]float64{700: 60}),
		"LINK/WETH": depthData(2, map[int]float64{300: 40}),
		"WETH/USDC": depthData(2500, map[int]float64{300: 100}),
	}}
	router, err := NewLiquidityRouter(source, []string{"WETH"}, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 100.0, depth)
}

func TestRouteSkipsPivotsMatchingEndpoints(t *testing.T) {
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"WETH/USDC": depthData(2500, map[int]float64{700: 80}),
	}}
	router, err := NewLiquidityRouter(source, []string{"WETH", "USDC"}, nil)
	require.NoError(t, err)

	// Both pivots coincide with the endpoints, so only the direct market
	// contributes.
	depth, resolved := router.Route(context.Background(), "WETH", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 80.0, depth)
}

func TestRouteSameAssetUsesDirectEstimateOnly(t *testing.T) {
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"USDC/USDC": depthData(1, map[int]float64{700: 1000}),
		"USDC/WETH": depthData(0.0004, map[int]float64{300: 500}),
		"WETH/USDC": depthData(2500, map[int]float64{300: 500}),
	}}
	router, err := NewLiquidityRouter(source, []string{"WETH"}, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "USDC", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 1000.0, depth)
}

func TestRouteNoDataAnywhereIsUnresolved(t *testing.T) {
	source := &fakeLiquiditySource{}
	router, err := NewLiquidityRouter(source, []string{"WETH", "USDC"}, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "DAI", 100, 200, 700)
	require.False(t, resolved)
	require.Zero(t, depth)
}

func TestRouteResolvedZeroDepthIsNotAbsence(t *testing.T) {
	// The pair has observations, just none within the slippage budget.
	source := &fakeLiquiditySource{data: map[string]types.LiquidityData{
		"LINK/USDC": depthData(15, map[int]float64{1000: 50}),
	}}
	router, err := NewLiquidityRouter(source, nil, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Zero(t, depth)
}

func TestRouteContinuesPastSourceFailures(t *testing.T) {
	source := &fakeLiquiditySource{
		data: map[string]types.LiquidityData{
			"LINK/WETH": depthData(2, map[int]float64{300: 40}),
			"WETH/USDC": depthData(2500, map[int]float64{300: 100}),
		},
		errs: map[string]error{
			"LINK/USDC": errors.New("query timeout"),
		},
	}
	router, err := NewLiquidityRouter(source, []string{"WETH"}, nil)
	require.NoError(t, err)

	depth, resolved := router.Route(context.Background(), "LINK", "USDC", 100, 200, 700)
	require.True(t, resolved)
	require.Equal(t, 40.0, depth)
}

func TestCombineTwoHopVolume(t *testing.T) {
	segment1 := depthData(2, map[int]float64{300: 40})
	segment2 := depthData(2500, map[int]float64{300: 100})

	require.Equal(t, 40.0, CombineTwoHopVolume(segment1, segment2, 700))

	// Second hop binds when its converted depth is smaller.
	shallow := depthData(2500, map[int]float64{300: 30})
	require.Equal(t, 15.0, CombineTwoHopVolume(segment1, shallow, 700))

	require.Zero(t, CombineTwoHopVolume(segment1, segment2, 0))
	require.Zero(t, CombineTwoHopVolume(depthData(0, map[int]float64{300: 40}), segment2, 700))
	require.Zero(t, CombineTwoHopVolume(depthData(2, nil), segment2, 700))
}
