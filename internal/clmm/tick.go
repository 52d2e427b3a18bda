// Package clmm holds the concentrated-liquidity price math: tick and
// square-root price conversions and liquidity decomposition into token amounts.
// Everything here is pure and safe for concurrent use.
package clmm

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinTick and MaxTick bound the Raydium CLMM tick grid.
	MinTick int32 = -443636
	MaxTick int32 = 443636

	tickBase = 1.0001
)

var (
	ErrTickOutOfRange   = errors.New("tick out of range")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTickRange = errors.New("invalid tick range")
	ErrInvalidLiquidity = errors.New("invalid liquidity")
	ErrInvalidSqrtPrice = errors.New("invalid sqrt price")
)

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) (float64, error) {
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: %d (must be between %d and %d)", ErrTickOutOfRange, tick, MinTick, MaxTick)
	}

	price := math.Pow(tickBase, float64(tick))
	if math.IsNaN(price) || math.IsInf(price, 0) || price == 0 {
		return 0, fmt.Errorf("%w: price for tick %d is not representable", ErrTickOutOfRange, tick)
	}
	return price, nil
}

// PriceToTick returns the largest tick whose price does not exceed price.
func PriceToTick(price float64) (int32, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: %f", ErrInvalidPrice, price)
	}

	// The epsilon absorbs log rounding so that PriceToTick(TickToPrice(t)) == t.
	raw := math.Floor(math.Log(price)/math.Log(tickBase) + 1e-9)
	if raw < float64(MinTick) || raw > float64(MaxTick) {
		return 0, fmt.Errorf("%w: price %g maps to tick %.0f", ErrTickOutOfRange, price, raw)
	}
	return int32(raw), nil
}

// AlignTick rounds tick down to a multiple of spacing, as pools only accept
// range bounds on initialized tick boundaries.
func AlignTick(tick int32, spacing int32) (int32, error) {
	if spacing <= 0 {
		return 0, fmt.Errorf("%w: tick spacing must be positive: %d", ErrInvalidTickRange, spacing)
	}
	aligned := tick / spacing * spacing
	if tick < 0 && tick%spacing != 0 {
		aligned -= spacing
	}
	if aligned < MinTick {
		aligned += spacing
	}
	return aligned, nil
}

// IsOutOfRange reports whether price lies outside [priceMin, priceMax].
// Sources use it to fill PositionSnapshot.IsOutOfRange.
func IsOutOfRange(price, priceMin, priceMax float64) bool {
	return price < priceMin || price > priceMax
}
