/*
Crypto Compare is used for spot USD prices (gas estimates).

This file maps token symbols as they appear in pool names to their Crypto Compare ID.
Wrapped and liquid-staked variants are priced as their underlying asset.

If a token doesnt have an entry here the symbol itself is used as the CCID.
*/

package config

import "strings"

var (
	CoinToCCId = map[string]string{
		"SOL":  "SOL",
		"WSOL": "SOL",
		"MSOL": "SOL",
		"RAY":  "RAY",
		"USDC": "USDC",
		"USDT": "USDT",
		"BONK": "BONK",
		"JUP":  "JUP",
		"ORCA": "ORCA",
		"WETH": "ETH",
		"WBTC": "BTC",
	}
)

// CCIdForSymbol returns the Crypto Compare ID for a token symbol.
func CCIdForSymbol(symbol string) string {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := CoinToCCId[normalized]; ok {
		return id
	}
	return normalized
}
