package clmm

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// ParseLiquidity parses the raw integer liquidity carried as text in snapshots.
func ParseLiquidity(text string) (sdkmath.Int, error) {
	liquidity, ok := sdkmath.NewIntFromString(strings.TrimSpace(text))
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not an integer", ErrInvalidLiquidity, text)
	}
	if liquidity.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s is negative", ErrInvalidLiquidity, liquidity)
	}
	return liquidity, nil
}

// TokenAmountsFromLiquidity splits liquidity L over [tickLower, tickUpper) into
// token amounts at the current tick:
//
// below range (tickCurrent < tickLower): amount0 = L(√pu − √pl)/(√pu·√pl), amount1 = 0
//
// above range (tickCurrent ≥ tickUpper): amount0 = 0, amount1 = L(√pu − √pl)
//
// in range: amount0 = L(√pu − √pc)/(√pu·√pc), amount1 = L(√pc − √pl)
//
// In range, √pc is clamped to [√pl, √pu] so a price slightly off the tick grid
// cannot produce negative amounts. Both in-range amounts are positive only when
// currentPrice lies strictly inside (priceLower, priceUpper), i.e. it agrees
// with tickCurrent. A price at or beyond a bound yields a zero on that side
// even though the tick says in range.
func TokenAmountsFromLiquidity(
	liquidity sdkmath.Int, tickLower, tickUpper, tickCurrent int32, currentPrice float64,
) (amount0, amount1 float64, err error) {
	if liquidity.IsNil() || liquidity.IsNegative() {
		return 0, 0, fmt.Errorf("%w: liquidity must be a non-negative integer", ErrInvalidLiquidity)
	}
	if tickLower >= tickUpper {
		return 0, 0, fmt.Errorf("%w: lower tick %d must be below upper tick %d", ErrInvalidTickRange, tickLower, tickUpper)
	}

	priceLower, err := TickToPrice(tickLower)
	if err != nil {
		return 0, 0, err
	}
	priceUpper, err := TickToPrice(tickUpper)
	if err != nil {
		return 0, 0, err
	}

	l := new(big.Float).SetPrec(floatPrec).SetInt(liquidity.BigInt())
	sqrtLower, sqrtUpper := sqrtOf(priceLower), sqrtOf(priceUpper)

	switch {
	case tickCurrent < tickLower:
		return toFloat(amount0Delta(l, sqrtLower, sqrtUpper)), 0, nil

	case tickCurrent >= tickUpper:
		return 0, toFloat(amount1Delta(l, sqrtLower, sqrtUpper)), nil

	default:
		if math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) || currentPrice <= 0 {
			return 0, 0, fmt.Errorf("%w: current price must be positive: %f", ErrInvalidPrice, currentPrice)
		}
		sqrtCurrent := sqrtOf(currentPrice)
		if sqrtCurrent.Cmp(sqrtLower) < 0 {
			sqrtCurrent = sqrtLower
		}
		if sqrtCurrent.Cmp(sqrtUpper) > 0 {
			sqrtCurrent = sqrtUpper
		}
		return toFloat(amount0Delta(l, sqrtCurrent, sqrtUpper)), toFloat(amount1Delta(l, sqrtLower, sqrtCurrent)), nil
	}
}

// amount0Delta returns L(√b − √a)/(√b·√a).
func amount0Delta(l, sqrtA, sqrtB *big.Float) *big.Float {
	diff := new(big.Float).SetPrec(floatPrec).Sub(sqrtB, sqrtA)
	denom := new(big.Float).SetPrec(floatPrec).Mul(sqrtA, sqrtB)
	num := new(big.Float).SetPrec(floatPrec).Mul(l, diff)
	return num.Quo(num, denom)
}

// amount1Delta returns L(√b − √a).
func amount1Delta(l, sqrtA, sqrtB *big.Float) *big.Float {
	diff := new(big.Float).SetPrec(floatPrec).Sub(sqrtB, sqrtA)
	return diff.Mul(diff, l)
}

func toFloat(v *big.Float) float64 {
	f, _ := v.Float64()
	return f
}
