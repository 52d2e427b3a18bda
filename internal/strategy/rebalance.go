// Package strategy implements the rebalance decision engine for
// concentrated-liquidity positions that have drifted out of range.
package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/rs/zerolog"
)

// maxGasShareOfValue is the gas cost, as a percent of position value, below
// which a rebalance is accepted even when pending fees do not cover it.
const maxGasShareOfValue = 1.0

// Engine evaluates position snapshots against the rebalance policy.
//
// The cooldown registry is guarded by a mutex, so one Engine may be shared by
// the scheduler and manual callers. TryClaimRebalance should be preferred when
// callers can race on the same position: it checks and stamps the cooldown
// under a single lock.
type Engine struct {
	config types.RebalanceConfig
	gas    GasEstimator
	now    func() time.Time
	logger zerolog.Logger

	mu            sync.Mutex
	lastRebalance map[string]time.Time
}

// Config holds the configuration for creating a new Engine
type Config struct {
	Rebalance    types.RebalanceConfig
	GasEstimator GasEstimator     // Defaults to DefaultGasEstimator
	Clock        func() time.Time // Defaults to time.Now
}

// NewEngine creates an Engine with an empty cooldown registry.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Rebalance.Validate(); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	gas := cfg.GasEstimator
	if gas == nil {
		gas = DefaultGasEstimator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		config:        cfg.Rebalance,
		gas:           gas,
		now:           clock,
		logger:        logger.GetForComponent("rebalance_engine"),
		lastRebalance: make(map[string]time.Time),
	}

	e.logger.Debug().
		Float64("priceMovementThreshold", e.config.PriceMovementThreshold).
		Float64("defaultRangePercent", e.config.DefaultRangePercent).
		Dur("minRebalanceInterval", e.config.MinRebalanceInterval).
		Float64("maxGasCostUSD", e.config.MaxGasCostUSD).
		Float64("minPositionValueUSD", e.config.MinPositionValueUSD).
		Msg("Rebalance engine created")

	return e, nil
}

// Config returns the policy the engine was built with.
func (e *Engine) Config() types.RebalanceConfig {
	return e.config
}

// EstimateGasCost returns the current rebalance cost estimate in USD.
func (e *Engine) EstimateGasCost() float64 {
	return e.gas.EstimateGasCostUSD()
}

// ShouldRebalance evaluates the snapshot. Criteria are checked in a fixed
// order and the first failing one decides:
// minimum value, range membership, cooldown, price movement, gas ceiling,
// profitability. A snapshot that fails Validate is never accepted; the
// validation error is carried in the reason.
func (e *Engine) ShouldRebalance(position types.PositionSnapshot) types.RebalanceDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	decision, _ := e.evaluateLocked(position)
	return decision
}

// Evaluate is ShouldRebalance with per-invocation overrides. Only
// opts.RangePercent affects the decision output; Force is the caller's concern.
func (e *Engine) Evaluate(position types.PositionSnapshot, opts types.RebalanceOptions) types.RebalanceDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	decision, _ := e.evaluateWithOptionsLocked(position, opts)
	return decision
}

func (e *Engine) evaluateWithOptionsLocked(position types.PositionSnapshot, opts types.RebalanceOptions) (types.RebalanceDecision, error) {
	decision, err := e.evaluateLocked(position)
	if err == nil && opts.RangePercent > 0 {
		decision.NewPriceMin, decision.NewPriceMax = e.CalculateNewRangeWithPercent(position, opts.RangePercent)
	}
	return decision, err
}

// evaluateLocked returns the validation error alongside a rejecting decision
// when the snapshot is outside the numeric domain.
func (e *Engine) evaluateLocked(position types.PositionSnapshot) (types.RebalanceDecision, error) {
	decision := types.RebalanceDecision{
		EstimatedGasCost:  e.gas.EstimateGasCostUSD(),
		RecommendedAction: types.ActionWait,
	}

	if err := position.Validate(); err != nil {
		decision.Reason = fmt.Sprintf("Invalid position snapshot: %v", err)
		e.logger.Warn().Err(err).Str("positionID", position.ID).Msg("Rejected invalid snapshot")
		return decision, err
	}
	decision.NewPriceMin, decision.NewPriceMax = e.CalculateNewRange(position)

	if position.TotalValueUSD < e.config.MinPositionValueUSD {
		decision.Reason = fmt.Sprintf("Position value ($%.2f) below minimum ($%.2f)",
			position.TotalValueUSD, e.config.MinPositionValueUSD)
		return decision, nil
	}

	if !position.IsOutOfRange {
		decision.Reason = "Position is still in range"
		return decision, nil
	}

	if last, ok := e.lastRebalance[position.ID]; ok {
		elapsed := e.now().Sub(last)
		if elapsed < e.config.MinRebalanceInterval {
			remaining := e.config.MinRebalanceInterval - elapsed
			minutesRemaining := int(math.Ceil(float64(remaining.Milliseconds()) / 60000))
			decision.Reason = fmt.Sprintf("Too soon since last rebalance (%d min remaining)", minutesRemaining)
			return decision, nil
		}
	}

	movement := PriceMovement(position)
	decision.PriceMovement = movement
	if movement < e.config.PriceMovementThreshold {
		decision.Reason = fmt.Sprintf("Price movement (%.2f%%) below threshold (%g%%)",
			movement, e.config.PriceMovementThreshold)
		return decision, nil
	}

	if decision.EstimatedGasCost > e.config.MaxGasCostUSD {
		decision.Reason = fmt.Sprintf("Estimated gas cost ($%.2f) exceeds maximum ($%.2f)",
			decision.EstimatedGasCost, e.config.MaxGasCostUSD)
		return decision, nil
	}

	if !e.isRebalanceProfitable(position, decision.EstimatedGasCost) {
		decision.Reason = "Rebalancing costs exceed potential benefits"
		return decision, nil
	}

	decision.ShouldRebalance = true
	decision.RecommendedAction = types.ActionRebalance
	decision.Reason = fmt.Sprintf("Position out of range by %.2f%%, rebalancing recommended", movement)
	return decision, nil
}

// PriceMovement returns how far the current price sits outside
// [PriceMin, PriceMax], as a percent of the range midpoint. It is 0 inside the range.
// The snapshot must already satisfy Validate.
func PriceMovement(position types.PositionSnapshot) float64 {
	midpoint := (position.PriceMin + position.PriceMax) / 2

	switch {
	case position.CurrentPrice > position.PriceMax:
		return (position.CurrentPrice - position.PriceMax) / midpoint * 100
	case position.CurrentPrice < position.PriceMin:
		return (position.PriceMin - position.CurrentPrice) / midpoint * 100
	default:
		return 0
	}
}

// CalculateNewRange centers a new range on the current price, ±DefaultRangePercent.
func (e *Engine) CalculateNewRange(position types.PositionSnapshot) (newPriceMin, newPriceMax float64) {
	return e.CalculateNewRangeWithPercent(position, e.config.DefaultRangePercent)
}

// CalculateNewRangeWithPercent centers a new range on the current price, ±rangePercent.
func (e *Engine) CalculateNewRangeWithPercent(position types.PositionSnapshot, rangePercent float64) (newPriceMin, newPriceMax float64) {
	width := rangePercent / 100
	newPriceMin = position.CurrentPrice * (1 - width)
	newPriceMax = position.CurrentPrice * (1 + width)

	e.logger.Debug().
		Str("pool", position.PoolName).
		Float64("currentPrice", position.CurrentPrice).
		Float64("oldPriceMin", position.PriceMin).
		Float64("oldPriceMax", position.PriceMax).
		Float64("newPriceMin", newPriceMin).
		Float64("newPriceMax", newPriceMax).
		Float64("rangePercent", rangePercent).
		Msg("Calculated new range")

	return newPriceMin, newPriceMax
}

func (e *Engine) isRebalanceProfitable(position types.PositionSnapshot, gasCost float64) bool {
	if position.PendingFeesUSD >= gasCost {
		return true
	}

	gasPercentage := gasCost / position.TotalValueUSD * 100
	if gasPercentage < maxGasShareOfValue {
		e.logger.Info().
			Str("positionID", position.ID).
			Float64("gasPercent", gasPercentage).
			Float64("totalValueUSD", position.TotalValueUSD).
			Msg("Gas cost acceptable for position value")
		return true
	}

	e.logger.Warn().
		Str("positionID", position.ID).
		Float64("gasPercent", gasPercentage).
		Float64("totalValueUSD", position.TotalValueUSD).
		Msg("Gas cost too high for position value")
	return false
}

// RecordRebalance stamps the cooldown for positionID with the current time.
// Callers invoke it after a rebalance has completed; the engine never does.
func (e *Engine) RecordRebalance(positionID string) {
	e.mu.Lock()
	e.lastRebalance[positionID] = e.now()
	e.mu.Unlock()

	e.logger.Info().Str("positionID", positionID).Msg("Recorded rebalance")
}

// LastRebalance returns the recorded rebalance time for positionID.
func (e *Engine) LastRebalance(positionID string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastRebalance[positionID]
	return last, ok
}

// Claim is a cooldown stamp taken by TryClaimRebalance.
type Claim struct {
	PositionID  string
	previous    time.Time
	hadPrevious bool
}

// TryClaimRebalance evaluates the snapshot and, when accepted, stamps the
// cooldown in the same critical section. The returned claim is nil when the
// decision rejects. Pass the claim to ReleaseClaim if execution fails.
func (e *Engine) TryClaimRebalance(position types.PositionSnapshot) (types.RebalanceDecision, *Claim) {
	return e.TryClaimRebalanceWithOptions(position, types.RebalanceOptions{})
}

// TryClaimRebalanceWithOptions is TryClaimRebalance with per-invocation
// overrides. With opts.Force a rejected decision is still claimed, unless the
// snapshot failed validation.
func (e *Engine) TryClaimRebalanceWithOptions(position types.PositionSnapshot, opts types.RebalanceOptions) (types.RebalanceDecision, *Claim) {
	e.mu.Lock()
	defer e.mu.Unlock()

	decision, err := e.evaluateWithOptionsLocked(position, opts)
	if err != nil || !(decision.ShouldRebalance || opts.Force) {
		return decision, nil
	}

	previous, hadPrevious := e.lastRebalance[position.ID]
	e.lastRebalance[position.ID] = e.now()
	return decision, &Claim{PositionID: position.ID, previous: previous, hadPrevious: hadPrevious}
}

// ReleaseClaim restores the cooldown state that existed before the claim.
func (e *Engine) ReleaseClaim(claim *Claim) {
	if claim == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if claim.hadPrevious {
		e.lastRebalance[claim.PositionID] = claim.previous
	} else {
		delete(e.lastRebalance, claim.PositionID)
	}
	e.logger.Debug().Str("positionID", claim.PositionID).Msg("Released rebalance claim")
}

// GetRecommendedAction formats the decision as a tagged line.
func (e *Engine) GetRecommendedAction(position types.PositionSnapshot) string {
	decision := e.ShouldRebalance(position)

	switch {
	case decision.ShouldRebalance:
		return "REBALANCE: " + decision.Reason
	case decision.RecommendedAction == types.ActionClose:
		return "CLOSE: " + decision.Reason
	default:
		return "WAIT: " + decision.Reason
	}
}
