/*
This file provides a deterministic demo portfolio so the monitor can run
end to end without a position API.

Wallet positions are derived from the wallet address, so ids are stable
across cycles and the cooldown registry behaves as it would against live data.
*/

package datafetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/elys-network/clmm-monitor/internal/clmm"
	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/rs/zerolog"
)

var demoPools = []types.Pool{
	{
		Address:      "61R1ndXxvsWXXkWSyNkCxnzwd3zUNB8Q2ibmkiLPC8ht",
		Name:         "SOL/USDC",
		Token0:       types.LookupToken("So11111111111111111111111111111111111111112"),
		Token1:       types.LookupToken("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		CurrentPrice: 100.50,
		Liquidity:    "5000000",
		TickSpacing:  10,
		Volume24hUSD: 2_500_000,
		APR:          28.5,
		TvlUSD:       10_000_000,
	},
	{
		Address:      "AVs9TA4nWDzfPJE9gGVNJMVhcQy3V9PGazuz33BfG2RA",
		Name:         "SOL/USDT",
		Token0:       types.LookupToken("So11111111111111111111111111111111111111112"),
		Token1:       types.LookupToken("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
		CurrentPrice: 100.25,
		Liquidity:    "3000000",
		TickSpacing:  10,
		Volume24hUSD: 1_800_000,
		APR:          22.3,
		TvlUSD:       6_500_000,
	},
	{
		Address:      "7gZNLDbWE73ueAoHuAeFoSu7JqmorwCLpNTBXHtYSFTa",
		Name:         "RAY/SOL",
		Token0:       types.LookupToken("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"),
		Token1:       types.LookupToken("So11111111111111111111111111111111111111112"),
		CurrentPrice: 0.0335,
		Liquidity:    "1500000",
		TickSpacing:  60,
		Volume24hUSD: 850_000,
		APR:          35.8,
		TvlUSD:       3_200_000,
	},
	{
		Address:      "5bj1Wh5pvZiX8LkwDCNKXWQGyMASLfDzePCpHVMJWEZo",
		Name:         "mSOL/SOL",
		Token0:       types.LookupToken("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"),
		Token1:       types.LookupToken("So11111111111111111111111111111111111111112"),
		CurrentPrice: 1.05,
		Liquidity:    "2000000",
		TickSpacing:  1,
		Volume24hUSD: 500_000,
		APR:          12.5,
		TvlUSD:       4_500_000,
	},
}

type demoPosition struct {
	poolIndex      int
	priceMin       float64
	priceMax       float64
	liquidity      string
	token0Amount   float64
	token1Amount   float64
	totalValueUSD  float64
	pendingFeesUSD float64
}

// SOL/USDC sits inside its range; RAY/SOL has run above its range.
var demoPositions = []demoPosition{
	{poolIndex: 0, priceMin: 95, priceMax: 105, liquidity: "150000", token0Amount: 10.5, token1Amount: 1050, totalValueUSD: 2100, pendingFeesUSD: 12.50},
	{poolIndex: 2, priceMin: 0.020, priceMax: 0.030, liquidity: "80000", token0Amount: 5000, token1Amount: 1.25, totalValueUSD: 850, pendingFeesUSD: 5.75},
}

// MockSource serves the demo portfolio.
type MockSource struct {
	logger zerolog.Logger

	mu     sync.RWMutex
	prices map[string]float64 // pool name -> price override
}

func NewMockSource() *MockSource {
	return &MockSource{
		logger: logger.GetForComponent("mock_source"),
		prices: make(map[string]float64),
	}
}

// SetPrice overrides the current price of a demo pool, for simulations and tests.
func (m *MockSource) SetPrice(poolName string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[poolName] = price
}

// GetPools returns the demo pools with any price overrides applied.
func (m *MockSource) GetPools(ctx context.Context) ([]types.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	pools := make([]types.Pool, len(demoPools))
	copy(pools, demoPools)
	for i := range pools {
		if price, ok := m.prices[pools[i].Name]; ok {
			pools[i].CurrentPrice = price
		}
	}
	return pools, nil
}

// GetWalletPositions returns the demo positions for walletAddress.
func (m *MockSource) GetWalletPositions(ctx context.Context, walletAddress string) ([]types.PositionSnapshot, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: wallet address cannot be empty", ErrInvalidPositionData)
	}
	pools, err := m.GetPools(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("wallet", walletAddress).Msg("Serving demo positions")

	prefix := walletAddress
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	positions := make([]types.PositionSnapshot, 0, len(demoPositions))
	for i, demo := range demoPositions {
		pool := pools[demo.poolIndex]

		tickLower, err := clmm.PriceToTick(demo.priceMin)
		if err != nil {
			return nil, err
		}
		tickUpper, err := clmm.PriceToTick(demo.priceMax)
		if err != nil {
			return nil, err
		}

		positions = append(positions, types.PositionSnapshot{
			ID:             fmt.Sprintf("position_%s_%d", prefix, i+1),
			PoolName:       pool.Name,
			CurrentPrice:   pool.CurrentPrice,
			PriceMin:       demo.priceMin,
			PriceMax:       demo.priceMax,
			TotalValueUSD:  demo.totalValueUSD,
			IsOutOfRange:   clmm.IsOutOfRange(pool.CurrentPrice, demo.priceMin, demo.priceMax),
			Liquidity:      demo.liquidity,
			Token0Amount:   demo.token0Amount,
			Token1Amount:   demo.token1Amount,
			PendingFeesUSD: demo.pendingFeesUSD,
			PoolAddress:    pool.Address,
			Token0Symbol:   pool.Token0.Symbol,
			Token1Symbol:   pool.Token1.Symbol,
			TickLower:      tickLower,
			TickUpper:      tickUpper,
			APR:            pool.APR,
		})
	}
	return positions, nil
}
