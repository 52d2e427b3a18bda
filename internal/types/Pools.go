/*

This is a custom type for CLMM pools, used for pool listings and tick calculations.

*/

package types

type Pool struct {
	Address      string  `json:"address"`
	Name         string  `json:"name"`   // e.g., "SOL/USDC"
	Token0       Token   `json:"token0"` // Base token, price is quoted per unit of Token0
	Token1       Token   `json:"token1"`
	CurrentPrice float64 `json:"current_price"`
	Liquidity    string  `json:"liquidity"`
	TickSpacing  int32   `json:"tick_spacing"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	APR          float64 `json:"apr"`
	TvlUSD       float64 `json:"tvl_usd"`
}
