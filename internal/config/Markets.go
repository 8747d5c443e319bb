/*

This file contains the default span and pivot sets and the parsing of the
market definitions from CLF_MARKETS.

*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// DefaultSpans is the closed set of lookback windows, in days. The CLF
// matrix is square over these values on both axes.
var DefaultSpans = []int{7, 30, 180}

// DefaultPivotAssets are the widely traded intermediates the liquidity
// router hops through when a pair has no deep direct market.
var DefaultPivotAssets = []string{"WETH", "USDC"}

// MarketSet is the ordered list of lending pools to score per run.
type MarketSet []types.Market

// ParseMarkets parses and validates the CLF_MARKETS JSON document.
func ParseMarkets(raw string) (MarketSet, error) {
	var markets MarketSet
	if err := json.Unmarshal([]byte(raw), &markets); err != nil {
		return nil, fmt.Errorf("CLF_MARKETS is not valid JSON: %w", err)
	}
	if len(markets) == 0 {
		return nil, errors.New("CLF_MARKETS must define at least one market")
	}

	seen := make(map[string]bool)
	for i, m := range markets {
		if err := validateMarket(m); err != nil {
			return nil, fmt.Errorf("CLF_MARKETS entry %d: %w", i, err)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("CLF_MARKETS contains duplicate market id %q", m.ID)
		}
		seen[m.ID] = true
	}

	return markets, nil
}

func validateMarket(m types.Market) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("market id cannot be empty")
	}
	if strings.TrimSpace(m.Comet) == "" {
		return errors.New("market contract address cannot be empty")
	}
	if err := validateAsset(m.BaseAsset); err != nil {
		return fmt.Errorf("base asset: %w", err)
	}
	if len(m.Collaterals) == 0 {
		return errors.New("market must define at least one collateral asset")
	}
	for _, c := range m.Collaterals {
		if err := validateAsset(c); err != nil {
			return fmt.Errorf("collateral %q: %w", c.Symbol, err)
		}
	}
	return nil
}

func validateAsset(a types.Asset) error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("asset symbol cannot be empty")
	}
	if strings.TrimSpace(a.Address) == "" {
		return errors.New("asset address cannot be empty")
	}
	if a.Decimals < 0 || a.Decimals > 18 {
		return errors.New("asset decimals must be between 0 and 18")
	}
	return nil
}
