package clmm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Q64 is the number of fractional bits in a Q64.64 square-root price.
const Q64 uint = 64

// floatPrec is the big.Float mantissa size used for square roots (~77 significant digits).
const floatPrec = 256

// SqrtPriceX64ToPrice decodes a Q64.64 square-root price.
func SqrtPriceX64ToPrice(sqrtPriceX64 *big.Int) (float64, error) {
	return SqrtPriceEncodedToPrice(sqrtPriceX64, Q64)
}

// SqrtPriceEncodedToPrice returns (encoded / 2^fractionalBits)^2.
//
// encoded / 2^n equals encoded * 5^n / 10^n, so the square root is represented
// exactly as a decimal and squared without rounding. Only the final narrowing
// to float64 is lossy.
func SqrtPriceEncodedToPrice(encoded *big.Int, fractionalBits uint) (float64, error) {
	if encoded == nil || encoded.Sign() <= 0 {
		return 0, fmt.Errorf("%w: encoded value must be positive", ErrInvalidSqrtPrice)
	}
	if fractionalBits > 192 {
		return 0, fmt.Errorf("%w: unsupported fractional bits %d", ErrInvalidSqrtPrice, fractionalBits)
	}

	five := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(fractionalBits)), nil)
	scaled := new(big.Int).Mul(encoded, five)

	sqrtPrice := decimal.NewFromBigInt(scaled, -int32(fractionalBits))
	price, _ := sqrtPrice.Mul(sqrtPrice).Float64()

	if math.IsInf(price, 0) || price == 0 {
		return 0, fmt.Errorf("%w: decoded price %s is outside float64 range", ErrInvalidSqrtPrice, sqrtPrice.String())
	}
	return price, nil
}

// PriceToSqrtPriceX64 encodes price as a Q64.64 square-root price, truncating
// the fractional remainder.
func PriceToSqrtPriceX64(price float64) (*big.Int, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidPrice, price)
	}

	q64 := new(big.Float).SetPrec(floatPrec).SetInt(new(big.Int).Lsh(big.NewInt(1), Q64))
	root := sqrtOf(price)
	root.Mul(root, q64)

	encoded, _ := root.Int(nil)
	if encoded.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %g underflows Q64.64", ErrInvalidPrice, price)
	}
	return encoded, nil
}

// sqrtOf returns √v at floatPrec bits.
func sqrtOf(v float64) *big.Float {
	x := new(big.Float).SetPrec(floatPrec).SetFloat64(v)
	return new(big.Float).SetPrec(floatPrec).Sqrt(x)
}
