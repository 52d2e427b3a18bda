/*

This file contains the default parameters for the monitor.

They are sized for a retail wallet holding a handful of CLMM positions worth
hundreds to a few thousand dollars each. Every value can be overridden from the
config file or the environment.

*/

package config

import (
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
)

// DefaultRebalanceConfig is the rebalance policy used when nothing overrides it.
var DefaultRebalanceConfig = types.RebalanceConfig{
	PriceMovementThreshold: 5.0, // Require the price to be 5% (of the range midpoint) outside the range.
	// Rationale: Prices that just graze a bound often come back within the hour.
	// Rebalancing on every small excursion burns fees and resets the position for nothing.

	DefaultRangePercent: 10.0, // New range is the current price ±10%.
	// Rationale: Narrow enough to keep fee capture concentrated, wide enough that a
	// normal day of volatility on majors does not push the position straight back out.

	MinRebalanceInterval: time.Hour, // At most one rebalance per position per hour.
	// Rationale: Protects against whipsaw markets where the price crosses the new
	// range immediately after it was opened.

	MaxGasCostUSD: 5.0, // Never spend more than $5 on a single close + reopen.
	// Rationale: Solana fees are normally fractions of a cent. An estimate above $5
	// means the fee market or the price feed is abnormal and we should wait.

	MinPositionValueUSD: 100.0, // Ignore positions worth less than $100.
	// Rationale: Dust positions cannot earn back even small costs in any reasonable time.
}

const (
	DefaultMonitorInterval = 5 * time.Minute
	// Rationale: CLMM prices move continuously but rebalancing is gated by a one hour
	// cooldown anyway. Five minutes keeps alerts timely without hammering the data API.

	DefaultMinHarvestThresholdUSD = 10.0
	// Rationale: Below $10 of pending fees the compound transactions are not worth the attention.

	DefaultSlippagePercent = 0.5

	DefaultWebPort = "8080"

	DefaultConfigFile = "clmm-monitor.yml"

	// GasPriceSymbol is the asset transaction fees are paid in.
	GasPriceSymbol = "SOL"

	// GasPriceMaxAge bounds how long a fetched SOL price is trusted for gas estimates.
	GasPriceMaxAge = 15 * time.Minute
)
