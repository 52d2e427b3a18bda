/*
Helpers for moving token amounts between raw on-chain units and human units.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidDecimals = errors.New("decimals out of range")
	ErrAmountNegative  = errors.New("amount is negative")
	ErrNotFinite       = errors.New("value is not finite")
)

// MaxDecimals is the largest mint precision accepted.
const MaxDecimals = 18

// FromBaseUnits scales a raw amount down by 10^decimals.
func FromBaseUnits(raw float64, decimals int) (float64, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidDecimals, decimals, MaxDecimals)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: %f", ErrNotFinite, raw)
	}
	if raw < 0 {
		return 0, fmt.Errorf("%w: %f", ErrAmountNegative, raw)
	}
	return raw / math.Pow10(decimals), nil
}
