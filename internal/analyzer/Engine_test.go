package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

type fakeChainReader struct {
	head       uint64
	riskFields map[string]types.RawRiskFields
	supplies   map[string]sdkmath.Int
	failAssets map[string]bool
}

func (f *fakeChainReader) CurrentBlockNumber(_ context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChainReader) AssetRiskFields(_ context.Context, market types.Market, assetIndex int) (types.RawRiskFields, error) {
	symbol := market.Collaterals[assetIndex].Symbol
	if f.failAssets[symbol] {
		return types.RawRiskFields{}, errors.New("rpc call reverted")
	}
	return f.riskFields[symbol], nil
}

func (f *fakeChainReader) CollateralSupply(_ context.Context, _ types.Market, asset types.Asset) (sdkmath.Int, error) {
	return f.supplies[asset.Symbol], nil
}

type fakePriceSource struct {
	prices map[string]float64
	fail   map[string]bool
}

func (f *fakePriceSource) SpotPriceUSD(_ context.Context, asset types.Asset) (float64, error) {
	if f.fail[asset.Symbol] {
		return 0, errors.New("price feed down")
	}
	return f.prices[asset.Symbol], nil
}

func testMarket() types.Market {
	return types.Market{
		ID:        "mainnet-usdc",
		Comet:     "0xc3d688B66703497DAA19211EEdff47f25384cdc3",
		BaseAsset: types.Asset{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		Collaterals: []types.Asset{
			{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
			{Symbol: "WBTC", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
		},
	}
}

func testChainReader() *fakeChainReader {
	factor := func(hundredths int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(hundredths, 16) }
	return &fakeChainReader{
		head: 1_000_000,
		riskFields: map[string]types.RawRiskFields{
			"WETH": {
				LiquidationFactor: factor(93),
				CollateralFactor:  factor(80),
				SupplyCap:         sdkmath.NewIntWithDecimal(10000, 18),
				FactorExponent:    18,
			},
			"WBTC": {
				LiquidationFactor: factor(93),
				CollateralFactor:  factor(80),
				SupplyCap:         sdkmath.NewIntWithDecimal(1000, 8),
				FactorExponent:    18,
			},
		},
		supplies: map[string]sdkmath.Int{
			"WETH": sdkmath.NewIntWithDecimal(500, 18),
			"WBTC": sdkmath.NewIntWithDecimal(20, 8),
		},
		failAssets: map[string]bool{},
	}
}

func testEngine(t *testing.T, chain ChainReader, prices PriceSource) *Engine {
	t.Helper()

	blocks := &fakeBlockResolver{blockFor: func(int64) (uint64, error) {
		return 500_000, nil
	}}
	vols := &fakeVolatilitySource{vol: func(_, _ string, _, _ uint64) (float64, error) {
		return 0.5, nil
	}}
	source := &rangedLiquiditySource{fn: func(_, _ string, _, _ uint64) (types.LiquidityData, error) {
		return depthData(2500, map[int]float64{700: 100}), nil
	}}
	router, err := NewLiquidityRouter(source, []string{"WETH", "USDC"}, nil)
	require.NoError(t, err)
	builder, err := NewMatrixBuilder(testSpans, blocks, vols, router)
	require.NoError(t, err)

	engine, err := NewEngine(EngineConfig{
		ChainReader:      chain,
		BlockResolver:    blocks,
		PriceSource:      prices,
		MatrixBuilder:    builder,
		AssetConcurrency: 2,
	})
	require.NoError(t, err)
	return engine
}

func testPrices() *fakePriceSource {
	return &fakePriceSource{
		prices: map[string]float64{"WETH": 2500, "WBTC": 60000},
		fail:   map[string]bool{},
	}
}

func TestComputeProtocolResult(t *testing.T) {
	engine := testEngine(t, testChainReader(), testPrices())

	result, err := engine.ComputeProtocolResult(context.Background(), []types.Market{testMarket()}, time.Time{})
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	pool := result.Results["USDC"]
	require.NotNil(t, pool)
	require.Len(t, pool.Data, 2)

	weth := pool.Data["WETH"]
	require.NotNil(t, weth)
	require.InDelta(t, 500.0, weth.Collateral.InKindSupply, 1e-9)
	require.InDelta(t, 1_250_000.0, weth.Collateral.UsdSupply, 1e-6)

	wbtc := pool.Data["WBTC"]
	require.NotNil(t, wbtc)
	require.InDelta(t, 1_200_000.0, wbtc.Collateral.UsdSupply, 1e-6)

	// Every matrix is square over the full span set.
	for _, asset := range []*types.AssetResult{weth, wbtc} {
		require.Len(t, asset.CLFs, 3)
		for _, volSpan := range testSpans {
			for _, liqSpan := range testSpans {
				require.True(t, asset.CLFs.Cell(volSpan, liqSpan).Defined)
			}
		}
	}

	wantWETH, err := CalculateCLF(100, 0.5, 0.07, 80, 10000)
	require.NoError(t, err)
	require.InDelta(t, wantWETH.Value, weth.CLFs.Cell(7, 7).Value, 1e-12)

	require.InDelta(t, 2_450_000.0, pool.TotalCollateral, 1e-6)
	require.NotNil(t, pool.WeightedCLF)
	require.NotNil(t, result.WeightedCLF)

	// A single pool carries full weight at the protocol level.
	require.InDelta(t, *pool.WeightedCLF, *result.WeightedCLF, 0.01)
}

func TestComputeProtocolResultIsolatesAssetFailures(t *testing.T) {
	chain := testChainReader()
	chain.failAssets["WBTC"] = true
	engine := testEngine(t, chain, testPrices())

	result, err := engine.ComputeProtocolResult(context.Background(), []types.Market{testMarket()}, time.Time{})
	require.NoError(t, err)

	pool := result.Results["USDC"]
	require.NotNil(t, pool)

	// The failed asset is present as an explicit null; its sibling and the
	// pool aggregate survive.
	require.Contains(t, pool.Data, "WBTC")
	require.Nil(t, pool.Data["WBTC"])
	require.NotNil(t, pool.Data["WETH"])
	require.InDelta(t, 1_250_000.0, pool.TotalCollateral, 1e-6)
	require.NotNil(t, pool.WeightedCLF)
	require.NotNil(t, result.WeightedCLF)
}

func TestComputeProtocolResultAllAssetsFailed(t *testing.T) {
	chain := testChainReader()
	chain.failAssets["WETH"] = true
	chain.failAssets["WBTC"] = true
	engine := testEngine(t, chain, testPrices())

	result, err := engine.ComputeProtocolResult(context.Background(), []types.Market{testMarket()}, time.Time{})
	require.NoError(t, err)

	pool := result.Results["USDC"]
	require.NotNil(t, pool)
	require.Nil(t, pool.Data["WETH"])
	require.Nil(t, pool.Data["WBTC"])
	require.Nil(t, pool.WeightedCLF)
	require.Nil(t, result.WeightedCLF)
}

func TestComputeProtocolResultPriceFailureZeroesUSDWeight(t *testing.T) {
	prices := testPrices()
	prices.fail["WBTC"] = true
	engine := testEngine(t, testChainReader(), prices)

	result, err := engine.ComputeProtocolResult(context.Background(), []types.Market{testMarket()}, time.Time{})
	require.NoError(t, err)

	wbtc := result.Results["USDC"].Data["WBTC"]
	require.NotNil(t, wbtc, "a price failure must not fail the asset")
	require.InDelta(t, 20.0, wbtc.Collateral.InKindSupply, 1e-9)
	require.Zero(t, wbtc.Collateral.UsdSupply)
	require.True(t, wbtc.CLFs.Cell(7, 7).Defined)

	// With WBTC carrying zero weight the pool score equals the WETH score.
	pool := result.Results["USDC"]
	require.NotNil(t, pool.WeightedCLF)
	wantWETH, err := CalculateCLF(100, 0.5, 0.07, 80, 10000)
	require.NoError(t, err)
	require.InDelta(t, wantWETH.Value*100, *pool.WeightedCLF, 0.01)
}

func TestComputeProtocolResultIsDeterministic(t *testing.T) {
	engine := testEngine(t, testChainReader(), testPrices())
	markets := []types.Market{testMarket()}

	first, err := engine.ComputeProtocolResult(context.Background(), markets, time.Time{})
	require.NoError(t, err)
	second, err := engine.ComputeProtocolResult(context.Background(), markets, time.Time{})
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)
}

func TestEndBlockFor(t *testing.T) {
	engine := testEngine(t, testChainReader(), testPrices())

	head, err := engine.EndBlockFor(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), head)

	historical, err := engine.EndBlockFor(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), historical)
}

func TestNewEngineValidation(t *testing.T) {
	engine := testEngine(t, testChainReader(), testPrices())

	_, err := NewEngine(EngineConfig{BlockResolver: engine.blocks, PriceSource: engine.prices, MatrixBuilder: engine.builder})
	require.Error(t, err)
	_, err = NewEngine(EngineConfig{ChainReader: engine.chain, PriceSource: engine.prices, MatrixBuilder: engine.builder})
	require.Error(t, err)
	_, err = NewEngine(EngineConfig{ChainReader: engine.chain, BlockResolver: engine.blocks, MatrixBuilder: engine.builder})
	require.Error(t, err)
	_, err = NewEngine(EngineConfig{ChainReader: engine.chain, BlockResolver: engine.blocks, PriceSource: engine.prices})
	require.Error(t, err)
}
