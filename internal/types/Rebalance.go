package types

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRebalanceConfig = errors.New("invalid rebalance config")

// RebalanceConfig holds the rebalance policy. It is set once when an engine is built.
type RebalanceConfig struct {
	PriceMovementThreshold float64       `json:"price_movement_threshold"` // Percent outside the range, relative to the range midpoint
	DefaultRangePercent    float64       `json:"default_range_percent"`    // New range is current price ± this percent
	MinRebalanceInterval   time.Duration `json:"min_rebalance_interval"`   // Cooldown between rebalances of one position
	MaxGasCostUSD          float64       `json:"max_gas_cost_usd"`
	MinPositionValueUSD    float64       `json:"min_position_value_usd"`
}

// Validate rejects configurations the engine cannot evaluate against.
func (c RebalanceConfig) Validate() error {
	if c.PriceMovementThreshold < 0 {
		return fmt.Errorf("%w: price movement threshold cannot be negative: %f", ErrInvalidRebalanceConfig, c.PriceMovementThreshold)
	}
	if c.DefaultRangePercent <= 0 || c.DefaultRangePercent >= 100 {
		return fmt.Errorf("%w: default range percent must be in (0, 100): %f", ErrInvalidRebalanceConfig, c.DefaultRangePercent)
	}
	if c.MinRebalanceInterval < 0 {
		return fmt.Errorf("%w: min rebalance interval cannot be negative: %s", ErrInvalidRebalanceConfig, c.MinRebalanceInterval)
	}
	if c.MaxGasCostUSD < 0 {
		return fmt.Errorf("%w: max gas cost cannot be negative: %f", ErrInvalidRebalanceConfig, c.MaxGasCostUSD)
	}
	if c.MinPositionValueUSD < 0 {
		return fmt.Errorf("%w: min position value cannot be negative: %f", ErrInvalidRebalanceConfig, c.MinPositionValueUSD)
	}
	return nil
}

// RecommendedAction is the action tag attached to a decision.
type RecommendedAction string

const (
	ActionRebalance RecommendedAction = "rebalance"
	ActionClose     RecommendedAction = "close" // Reserved; no rule emits it
	ActionWait      RecommendedAction = "wait"
)

// RebalanceDecision is the outcome of evaluating one snapshot.
// EstimatedGasCost is populated on every decision. NewPriceMin and NewPriceMax
// are populated whenever the snapshot passed validation.
type RebalanceDecision struct {
	ShouldRebalance   bool              `json:"should_rebalance"`
	Reason            string            `json:"reason"`
	NewPriceMin       float64           `json:"new_price_min"`
	NewPriceMax       float64           `json:"new_price_max"`
	EstimatedGasCost  float64           `json:"estimated_gas_cost"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	PriceMovement     float64           `json:"price_movement"` // 0 when rejected before the movement check
}

// RebalanceOptions are per-invocation overrides for a manual rebalance.
type RebalanceOptions struct {
	Force        bool    // Proceed with the computed range even when the decision rejects
	RangePercent float64 // Overrides DefaultRangePercent for this invocation when > 0
	Execute      bool    // Call the executor; otherwise only evaluate
}

// ExecutionResult describes a completed close-and-reopen.
type ExecutionResult struct {
	PositionID    string    `json:"position_id"`
	NewPositionID string    `json:"new_position_id,omitempty"`
	NewPriceMin   float64   `json:"new_price_min"`
	NewPriceMax   float64   `json:"new_price_max"`
	NewTickLower  int32     `json:"new_tick_lower"`
	NewTickUpper  int32     `json:"new_tick_upper"`
	Steps         []string  `json:"steps,omitempty"` // Instructions in execution order
	Simulated     bool      `json:"simulated"`
	CompletedAt   time.Time `json:"completed_at"`
}
