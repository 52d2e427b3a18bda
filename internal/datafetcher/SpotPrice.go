/*
This file is used to fetch spot USD prices from the CryptoCompare API.

Only the gas estimator uses it today: transaction fees are paid in SOL and the
rebalance policy caps them in USD.
*/

package datafetcher

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/elys-network/clmm-monitor/internal/config"
)

// CryptoCompareSpotResponse is the /data/price body. On failure CryptoCompare
// returns Response "Error" and a Message instead of the price map.
type CryptoCompareSpotResponse struct {
	USD      float64 `json:"USD"`
	Response string  `json:"Response"`
	Message  string  `json:"Message"`
}

// PriceFeed fetches spot prices.
type PriceFeed struct {
	baseURL string
	apiKey  string
	client  *apiClient
}

// NewPriceFeed creates a PriceFeed against the CryptoCompare /data/price endpoint.
func NewPriceFeed(baseURL, apiKey string, opts ClientOptions) (*PriceFeed, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = config.DefaultPriceAPI
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid price API URL %q: %w", baseURL, err)
	}
	return &PriceFeed{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  newAPIClient("price_feed", opts),
	}, nil
}

// SpotPriceUSD returns the current USD price of symbol.
func (f *PriceFeed) SpotPriceUSD(ctx context.Context, symbol string) (float64, error) {
	coin := config.CCIdForSymbol(symbol)
	if coin == "" {
		return 0, fmt.Errorf("%w: empty symbol", ErrInvalidPriceData)
	}

	query := url.Values{}
	query.Set("fsym", coin)
	query.Set("tsyms", "USD")
	if f.apiKey != "" {
		query.Set("api_key", f.apiKey)
	}

	var resp CryptoCompareSpotResponse
	if err := f.client.getJSON(ctx, f.baseURL+"?"+query.Encode(), nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch spot price for %s: %w", coin, err)
	}

	if resp.Response == "Error" {
		return 0, fmt.Errorf("%w: API error for %s: %s", ErrInvalidPriceData, coin, resp.Message)
	}
	if math.IsNaN(resp.USD) || math.IsInf(resp.USD, 0) || resp.USD <= 0 {
		return 0, fmt.Errorf("%w: price for %s must be positive: %f", ErrInvalidPriceData, coin, resp.USD)
	}

	f.client.logger.Debug().
		Str("coin", coin).
		Float64("priceUSD", resp.USD).
		Msg("Fetched spot price")

	return resp.USD, nil
}
