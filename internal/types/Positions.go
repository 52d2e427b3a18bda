/*

This file contains the position types consumed by the rebalance engine.

A PositionSnapshot is produced by a data source once per evaluation and is
treated as immutable afterwards. IsOutOfRange is trusted as given: sources must
keep it consistent with CurrentPrice versus [PriceMin, PriceMax].

*/

package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidSnapshot = errors.New("invalid position snapshot")

// PositionSnapshot is the state of one concentrated-liquidity position at a point in time.
type PositionSnapshot struct {
	ID             string  `json:"id"`
	PoolName       string  `json:"pool_name"`
	CurrentPrice   float64 `json:"current_price"`
	PriceMin       float64 `json:"price_min"`
	PriceMax       float64 `json:"price_max"`
	TotalValueUSD  float64 `json:"total_value_usd"`
	IsOutOfRange   bool    `json:"is_out_of_range"`
	Liquidity      string  `json:"liquidity"` // Raw integer liquidity kept as text to avoid precision loss
	Token0Amount   float64 `json:"token0_amount"`
	Token1Amount   float64 `json:"token1_amount"`
	PendingFeesUSD float64 `json:"pending_fees_usd"`

	// Display-only fields. Sources that do not know them leave the zero value.
	PoolAddress  string  `json:"pool_address,omitempty"`
	Token0Symbol string  `json:"token0_symbol,omitempty"`
	Token1Symbol string  `json:"token1_symbol,omitempty"`
	TickLower    int32   `json:"tick_lower,omitempty"`
	TickUpper    int32   `json:"tick_upper,omitempty"`
	APR          float64 `json:"apr,omitempty"`
}

// Validate checks the numeric domain of the snapshot.
// It does not re-derive IsOutOfRange from the prices.
func (p PositionSnapshot) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty position id", ErrInvalidSnapshot)
	}

	fields := []struct {
		value float64
		name  string
	}{
		{p.CurrentPrice, "current price"},
		{p.PriceMin, "price min"},
		{p.PriceMax, "price max"},
		{p.TotalValueUSD, "total value"},
		{p.PendingFeesUSD, "pending fees"},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s for %s is not finite: %f", ErrInvalidSnapshot, f.name, p.ID, f.value)
		}
	}

	if p.CurrentPrice <= 0 {
		return fmt.Errorf("%w: current price for %s must be positive: %f", ErrInvalidSnapshot, p.ID, p.CurrentPrice)
	}
	if p.PriceMin <= 0 {
		return fmt.Errorf("%w: price min for %s must be positive: %f", ErrInvalidSnapshot, p.ID, p.PriceMin)
	}
	if p.PriceMin >= p.PriceMax {
		return fmt.Errorf("%w: price min (%f) must be below price max (%f) for %s", ErrInvalidSnapshot, p.PriceMin, p.PriceMax, p.ID)
	}
	if p.TotalValueUSD < 0 {
		return fmt.Errorf("%w: total value for %s cannot be negative: %f", ErrInvalidSnapshot, p.ID, p.TotalValueUSD)
	}
	if p.PendingFeesUSD < 0 {
		return fmt.Errorf("%w: pending fees for %s cannot be negative: %f", ErrInvalidSnapshot, p.ID, p.PendingFeesUSD)
	}
	return nil
}

// ShortID returns the first 8 characters of the id for log lines.
func (p PositionSnapshot) ShortID() string {
	if len(p.ID) <= 8 {
		return p.ID
	}
	return p.ID[:8]
}
