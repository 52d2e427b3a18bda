/*
This file fetches wallet positions from an HTTP position API and turns the raw
pool state into PositionSnapshots.

The API reports raw CLMM state (liquidity, ticks, Q64.64 sqrt price). Human
prices, token amounts and the out-of-range flag are derived here so that every
snapshot handed to the rebalance engine is internally consistent.
*/

package datafetcher

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/elys-network/clmm-monitor/internal/clmm"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/elys-network/clmm-monitor/internal/utils"
)

// APIPosition is one position as served by the position API.
type APIPosition struct {
	ID             string  `json:"id"`
	PoolAddress    string  `json:"pool_address"`
	PoolName       string  `json:"pool_name"`
	Token0Symbol   string  `json:"token0_symbol"`
	Token1Symbol   string  `json:"token1_symbol"`
	Token0Decimals int     `json:"token0_decimals"`
	Token1Decimals int     `json:"token1_decimals"`
	Liquidity      string  `json:"liquidity"`
	TickLower      int32   `json:"tick_lower"`
	TickUpper      int32   `json:"tick_upper"`
	TickCurrent    int32   `json:"tick_current"`
	SqrtPriceX64   string  `json:"sqrt_price_x64"`
	TotalValueUSD  float64 `json:"total_value_usd"`
	PendingFeesUSD float64 `json:"pending_fees_usd"`
	APR            float64 `json:"apr"`
}

// APIPositionsResponse is the position API response body.
type APIPositionsResponse struct {
	Wallet    string        `json:"wallet"`
	Positions []APIPosition `json:"positions"`
}

// APISource fetches positions from {baseURL}/wallets/{wallet}/positions.
type APISource struct {
	baseURL string
	apiKey  string
	client  *apiClient
}

// NewAPISource creates an APISource. apiKey is optional and sent as a bearer token.
func NewAPISource(baseURL, apiKey string, opts ClientOptions) (*APISource, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid position API URL %q", baseURL)
	}
	return &APISource{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		apiKey:  apiKey,
		client:  newAPIClient("position_api", opts),
	}, nil
}

// GetWalletPositions fetches and converts every position of walletAddress.
// A single malformed position fails the whole fetch: partial portfolios would
// make the cycle totals wrong.
func (s *APISource) GetWalletPositions(ctx context.Context, walletAddress string) ([]types.PositionSnapshot, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: wallet address cannot be empty", ErrInvalidPositionData)
	}

	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	endpoint := fmt.Sprintf("%s/wallets/%s/positions", s.baseURL, url.PathEscape(walletAddress))
	var resp APIPositionsResponse
	if err := s.client.getJSON(ctx, endpoint, header, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch positions for %s: %w", walletAddress, err)
	}

	snapshots := make([]types.PositionSnapshot, 0, len(resp.Positions))
	for i, raw := range resp.Positions {
		snapshot, err := ToSnapshot(raw)
		if err != nil {
			s.client.logger.Error().
				Err(err).
				Int("index", i).
				Str("positionID", raw.ID).
				Msg("Invalid position data")
			return nil, fmt.Errorf("position %d (%s): %w", i, raw.ID, err)
		}
		snapshots = append(snapshots, snapshot)
	}

	s.client.logger.Info().
		Str("wallet", walletAddress).
		Int("positions", len(snapshots)).
		Msg("Fetched wallet positions")

	return snapshots, nil
}

// ToSnapshot converts raw position state into a PositionSnapshot.
func ToSnapshot(raw APIPosition) (types.PositionSnapshot, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return types.PositionSnapshot{}, fmt.Errorf("%w: missing position id", ErrInvalidPositionData)
	}
	if raw.Token0Decimals < 0 || raw.Token1Decimals < 0 || raw.Token0Decimals > 18 || raw.Token1Decimals > 18 {
		return types.PositionSnapshot{}, fmt.Errorf("%w: token decimals out of range", ErrInvalidPositionData)
	}

	liquidity, err := clmm.ParseLiquidity(raw.Liquidity)
	if err != nil {
		return types.PositionSnapshot{}, err
	}

	sqrtPrice, ok := new(big.Int).SetString(strings.TrimSpace(raw.SqrtPriceX64), 10)
	if !ok {
		return types.PositionSnapshot{}, fmt.Errorf("%w: sqrt price %q is not an integer", ErrInvalidPositionData, raw.SqrtPriceX64)
	}
	rawPrice, err := clmm.SqrtPriceX64ToPrice(sqrtPrice)
	if err != nil {
		return types.PositionSnapshot{}, err
	}
	rawMin, err := clmm.TickToPrice(raw.TickLower)
	if err != nil {
		return types.PositionSnapshot{}, err
	}
	rawMax, err := clmm.TickToPrice(raw.TickUpper)
	if err != nil {
		return types.PositionSnapshot{}, err
	}

	// Token amounts come out of the liquidity math in raw units.
	raw0, raw1, err := clmm.TokenAmountsFromLiquidity(liquidity, raw.TickLower, raw.TickUpper, raw.TickCurrent, rawPrice)
	if err != nil {
		return types.PositionSnapshot{}, err
	}
	amount0, err := utils.FromBaseUnits(raw0, raw.Token0Decimals)
	if err != nil {
		return types.PositionSnapshot{}, fmt.Errorf("%w: token0: %w", ErrInvalidPositionData, err)
	}
	amount1, err := utils.FromBaseUnits(raw1, raw.Token1Decimals)
	if err != nil {
		return types.PositionSnapshot{}, fmt.Errorf("%w: token1: %w", ErrInvalidPositionData, err)
	}

	adjust := types.DecimalAdjustment(
		types.Token{Symbol: raw.Token0Symbol, Decimals: raw.Token0Decimals},
		types.Token{Symbol: raw.Token1Symbol, Decimals: raw.Token1Decimals},
	)
	price := rawPrice * adjust
	priceMin := rawMin * adjust
	priceMax := rawMax * adjust

	name := raw.PoolName
	if name == "" && raw.Token0Symbol != "" && raw.Token1Symbol != "" {
		name = raw.Token0Symbol + "/" + raw.Token1Symbol
	}

	snapshot := types.PositionSnapshot{
		ID:             raw.ID,
		PoolName:       name,
		CurrentPrice:   price,
		PriceMin:       priceMin,
		PriceMax:       priceMax,
		TotalValueUSD:  raw.TotalValueUSD,
		IsOutOfRange:   clmm.IsOutOfRange(price, priceMin, priceMax),
		Liquidity:      liquidity.String(),
		Token0Amount:   amount0,
		Token1Amount:   amount1,
		PendingFeesUSD: raw.PendingFeesUSD,
		PoolAddress:    raw.PoolAddress,
		Token0Symbol:   raw.Token0Symbol,
		Token1Symbol:   raw.Token1Symbol,
		TickLower:      raw.TickLower,
		TickUpper:      raw.TickUpper,
		APR:            raw.APR,
	}
	if err := snapshot.Validate(); err != nil {
		return types.PositionSnapshot{}, err
	}
	return snapshot, nil
}
