/*

This file reads point-in-time lending-pool state over JSON-RPC: the
per-asset risk fields and the total collateral supply, both as fixed-point
integers exactly as the contract stores them.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/analyzer"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

var ErrInvalidChainResponse = errors.New("invalid chain response")

// Risk factors are stored with 18 decimals on-chain.
const factorExponent = 18

const poolABIJSON = `[
	{"inputs":[{"internalType":"uint8","name":"i","type":"uint8"}],"name":"getAssetInfo","outputs":[{"components":[{"internalType":"uint8","name":"offset","type":"uint8"},{"internalType":"address","name":"asset","type":"address"},{"internalType":"address","name":"priceFeed","type":"address"},{"internalType":"uint64","name":"scale","type":"uint64"},{"internalType":"uint64","name":"borrowCollateralFactor","type":"uint64"},{"internalType":"uint64","name":"liquidateCollateralFactor","type":"uint64"},{"internalType":"uint64","name":"liquidationFactor","type":"uint64"},{"internalType":"uint128","name":"supplyCap","type":"uint128"}],"internalType":"struct AssetInfo","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"totalsCollateral","outputs":[{"internalType":"uint128","name":"totalSupplyAsset","type":"uint128"},{"internalType":"uint128","name":"_reserved","type":"uint128"}],"stateMutability":"view","type":"function"}
]`

// assetInfo mirrors the tuple returned by getAssetInfo.
type assetInfo struct {
	Offset                    uint8
	Asset                     common.Address
	PriceFeed                 common.Address
	Scale                     uint64
	BorrowCollateralFactor    uint64
	LiquidateCollateralFactor uint64
	LiquidationFactor         uint64
	SupplyCap                 *big.Int
}

// ChainClient implements the engine's ChainReader over an Ethereum
// JSON-RPC node. A nil atBlock reads the latest state; AtBlock returns a
// copy pinned to a historical block for backfill runs.
type ChainClient struct {
	client  *ethclient.Client
	poolABI abi.ABI
	atBlock *big.Int
	logger  zerolog.Logger
}

// NewChainClient wraps an ethclient connection.
func NewChainClient(client *ethclient.Client) (*ChainClient, error) {
	if client == nil {
		return nil, errors.New("ethclient cannot be nil")
	}
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing pool ABI: %w", err)
	}
	return &ChainClient{
		client:  client,
		poolABI: parsed,
		logger:  logger.GetForComponent("chain_client"),
	}, nil
}

// AtBlock returns a ChainClient whose contract reads are pinned to the
// given block height.
func (c *ChainClient) AtBlock(block uint64) analyzer.ChainReader {
	pinned := *c
	pinned.atBlock = new(big.Int).SetUint64(block)
	return &pinned
}

// CurrentBlockNumber returns the chain head height.
func (c *ChainClient) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number query failed: %w", err)
	}
	return head, nil
}

// AssetRiskFields reads the risk configuration of the assetIndex-th
// collateral asset of the market's pool contract.
func (c *ChainClient) AssetRiskFields(ctx context.Context, market types.Market, assetIndex int) (types.RawRiskFields, error) {
	if assetIndex < 0 || assetIndex > 255 {
		return types.RawRiskFields{}, fmt.Errorf("%w: asset index %d out of range", ErrInvalidChainResponse, assetIndex)
	}

	out, err := c.call(ctx, market, "getAssetInfo", uint8(assetIndex))
	if err != nil {
		return types.RawRiskFields{}, err
	}
	if len(out) != 1 {
		return types.RawRiskFields{}, fmt.Errorf("%w: getAssetInfo returned %d values", ErrInvalidChainResponse, len(out))
	}

	info := *abi.ConvertType(out[0], new(assetInfo)).(*assetInfo)
	if info.SupplyCap == nil {
		return types.RawRiskFields{}, fmt.Errorf("%w: nil supply cap", ErrInvalidChainResponse)
	}

	c.logger.Debug().
		Str("market", market.ID).
		Int("assetIndex", assetIndex).
		Uint64("liquidationFactor", info.LiquidationFactor).
		Uint64("borrowCollateralFactor", info.BorrowCollateralFactor).
		Str("supplyCap", info.SupplyCap.String()).
		Msg("Fetched asset risk fields")

	return types.RawRiskFields{
		LiquidationFactor: sdkmath.NewIntFromUint64(info.LiquidationFactor),
		CollateralFactor:  sdkmath.NewIntFromUint64(info.BorrowCollateralFactor),
		SupplyCap:         sdkmath.NewIntFromBigInt(info.SupplyCap),
		FactorExponent:    factorExponent,
	}, nil
}

// CollateralSupply reads the pool's total supplied amount of the given
// collateral asset, in the asset's own fixed-point units.
func (c *ChainClient) CollateralSupply(ctx context.Context, market types.Market, asset types.Asset) (sdkmath.Int, error) {
	out, err := c.call(ctx, market, "totalsCollateral", common.HexToAddress(asset.Address))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if len(out) != 2 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: totalsCollateral returned %d values", ErrInvalidChainResponse, len(out))
	}

	totalSupply, ok := out[0].(*big.Int)
	if !ok || totalSupply == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: totalsCollateral supply is not an integer", ErrInvalidChainResponse)
	}

	return sdkmath.NewIntFromBigInt(totalSupply), nil
}

func (c *ChainClient) call(ctx context.Context, market types.Market, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.poolABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s call: %w", method, err)
	}

	contract := common.HexToAddress(market.Comet)
	msg := ethereum.CallMsg{To: &contract, Data: input}

	res, err := c.client.CallContract(ctx, msg, c.atBlock)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, market.Comet, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty %s response from %s", ErrInvalidChainResponse, method, market.Comet)
	}

	out, err := c.poolABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s response: %w", method, err)
	}
	return out, nil
}
