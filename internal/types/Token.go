/*

This file contains the SPL token metadata needed to turn raw pool state into human prices.

*/

package types

import "math"

type Token struct {
	Mint     string `json:"mint"`     // e.g., "So11111111111111111111111111111111111111112"
	Symbol   string `json:"symbol"`   // e.g., "SOL"
	Decimals int    `json:"decimals"` // e.g., 9 = 1 SOL is 1e9 lamports
}

// KnownTokens are the mints the demo portfolio and the tick calculator recognise.
var KnownTokens = map[string]Token{
	"So11111111111111111111111111111111111111112":  {Mint: "So11111111111111111111111111111111111111112", Symbol: "SOL", Decimals: 9},
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Symbol: "USDT", Decimals: 6},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Symbol: "RAY", Decimals: 6},
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {Mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Symbol: "mSOL", Decimals: 9},
}

// LookupToken returns the metadata for mint, or an UNKNOWN token with 9 decimals.
func LookupToken(mint string) Token {
	if token, ok := KnownTokens[mint]; ok {
		return token
	}
	return Token{Mint: mint, Symbol: "UNKNOWN", Decimals: 9}
}

// DecimalAdjustment is the factor that converts a raw token1/token0 price into
// a human price: 10^(decimals0 - decimals1).
func DecimalAdjustment(token0, token1 Token) float64 {
	return math.Pow10(token0.Decimals - token1.Decimals)
}
