/*

This file fetches spot USD prices from the external price feed with strict
response validation. Callers substitute 0 for a failed lookup; this client
only reports the failure.

*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

var ErrPriceUnavailable = errors.New("spot price unavailable")
var ErrPriceResponseInvalid = errors.New("price API response validation failed")

const priceRequestTimeout = 30 * time.Second

// priceResponse matches the price feed's response document.
type priceResponse struct {
	Coins map[string]struct {
		Price     float64 `json:"price"`
		Timestamp int64   `json:"timestamp"`
	} `json:"coins"`
}

// PriceClient fetches spot USD prices keyed by "{chain}:{address}".
type PriceClient struct {
	baseURL string
	chain   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewPriceClient builds a price feed client for the given base URL and
// chain slug.
func NewPriceClient(baseURL, chain string) (*PriceClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("price API base URL cannot be empty")
	}
	if strings.TrimSpace(chain) == "" {
		return nil, errors.New("price chain slug cannot be empty")
	}
	return &PriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		chain:   chain,
		client:  &http.Client{Timeout: priceRequestTimeout},
		logger:  logger.GetForComponent("price_client"),
	}, nil
}

// SpotPriceUSD returns the current USD price of the asset.
func (p *PriceClient) SpotPriceUSD(ctx context.Context, asset types.Asset) (float64, error) {
	coinID := strings.ToLower(p.chain + ":" + asset.Address)
	url := p.baseURL + "/prices/current/" + coinID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building price request: %w", err)
	}

	p.logger.Debug().
		Str("asset", asset.Symbol).
		Str("url", url).
		Msg("Fetching spot price")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrPriceResponseInvalid, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading price response: %w", err)
	}
	if len(body) == 0 {
		return 0, fmt.Errorf("%w: empty body", ErrPriceResponseInvalid)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPriceResponseInvalid, err)
	}

	coin, ok := parsed.Coins[coinID]
	if !ok {
		return 0, fmt.Errorf("%w: no entry for %s", ErrPriceUnavailable, coinID)
	}
	if math.IsNaN(coin.Price) || math.IsInf(coin.Price, 0) || coin.Price < 0 {
		return 0, fmt.Errorf("%w: price %f for %s", ErrPriceResponseInvalid, coin.Price, coinID)
	}

	p.logger.Debug().
		Str("asset", asset.Symbol).
		Float64("price", coin.Price).
		Msg("Spot price fetched")

	return coin.Price, nil
}
