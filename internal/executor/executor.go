// Package executor performs the close-and-reopen half of a rebalance.
//
// Only a simulated executor exists: it walks through the instruction sequence
// a real Raydium rebalance would send, without building or signing transactions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/elys-network/clmm-monitor/internal/clmm"
	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/rs/zerolog"
)

var ErrInvalidRange = errors.New("invalid target range")

// Executor closes a position and reopens it over a new price range.
type Executor interface {
	CloseAndReopen(ctx context.Context, position types.PositionSnapshot, newPriceMin, newPriceMax float64) (types.ExecutionResult, error)
}

var (
	closeSteps = []string{"decrease_liquidity", "collect_fees", "close_position"}
	openSteps  = []string{"open_position", "increase_liquidity"}
)

// Config holds the configuration for creating a SimulatedExecutor
type Config struct {
	StepDelay       time.Duration // Pause per instruction, to mimic confirmation latency
	SlippagePercent float64
	// FailOn, when set, is consulted before every step. A non-nil error aborts the rebalance.
	FailOn func(positionID, step string) error
	Clock  func() time.Time
}

// SimulatedExecutor logs the instruction sequence of a rebalance.
type SimulatedExecutor struct {
	stepDelay       time.Duration
	slippagePercent float64
	failOn          func(positionID, step string) error
	now             func() time.Time
	logger          zerolog.Logger

	mu        sync.Mutex
	sequences map[string]int
}

// NewSimulatedExecutor creates a SimulatedExecutor.
func NewSimulatedExecutor(cfg Config) (*SimulatedExecutor, error) {
	if cfg.StepDelay < 0 {
		return nil, fmt.Errorf("step delay cannot be negative: %s", cfg.StepDelay)
	}
	if cfg.SlippagePercent < 0 || cfg.SlippagePercent >= 100 {
		return nil, fmt.Errorf("slippage percent must be in [0, 100): %f", cfg.SlippagePercent)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SimulatedExecutor{
		stepDelay:       cfg.StepDelay,
		slippagePercent: cfg.SlippagePercent,
		failOn:          cfg.FailOn,
		now:             clock,
		logger:          logger.GetForComponent("simulated_executor"),
		sequences:       make(map[string]int),
	}, nil
}

// CloseAndReopen simulates closing position and opening a replacement over
// [newPriceMin, newPriceMax]. It stops at the first failing step or when ctx is done.
func (e *SimulatedExecutor) CloseAndReopen(ctx context.Context, position types.PositionSnapshot, newPriceMin, newPriceMax float64) (types.ExecutionResult, error) {
	result := types.ExecutionResult{
		PositionID:  position.ID,
		NewPriceMin: newPriceMin,
		NewPriceMax: newPriceMax,
		Simulated:   true,
	}

	if err := position.Validate(); err != nil {
		return result, err
	}
	if math.IsNaN(newPriceMin) || math.IsNaN(newPriceMax) || newPriceMin <= 0 || newPriceMin >= newPriceMax {
		return result, fmt.Errorf("%w: [%f, %f]", ErrInvalidRange, newPriceMin, newPriceMax)
	}

	tickLower, err := clmm.PriceToTick(newPriceMin)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	tickUpper, err := clmm.PriceToTick(newPriceMax)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	if tickUpper <= tickLower {
		tickUpper = tickLower + 1
	}
	result.NewTickLower, result.NewTickUpper = tickLower, tickUpper

	log := e.logger.With().Str("positionID", position.ID).Str("pool", position.PoolName).Logger()

	keep := 1 - e.slippagePercent/100
	log.Info().
		Float64("oldPriceMin", position.PriceMin).
		Float64("oldPriceMax", position.PriceMax).
		Float64("newPriceMin", newPriceMin).
		Float64("newPriceMax", newPriceMax).
		Int32("newTickLower", tickLower).
		Int32("newTickUpper", tickUpper).
		Float64("minToken0Out", position.Token0Amount*keep).
		Float64("minToken1Out", position.Token1Amount*keep).
		Msg("[SIMULATION] Starting rebalance")

	for _, step := range append(append([]string{}, closeSteps...), openSteps...) {
		if err := e.runStep(ctx, position.ID, step); err != nil {
			log.Error().Err(err).Str("step", step).Strs("completed", result.Steps).Msg("[SIMULATION] Rebalance aborted")
			return result, fmt.Errorf("rebalance of %s failed at %s: %w", position.ID, step, err)
		}
		result.Steps = append(result.Steps, step)
		log.Debug().Str("step", step).Msg("[SIMULATION] Step confirmed")
	}

	e.mu.Lock()
	e.sequences[position.ID]++
	seq := e.sequences[position.ID]
	e.mu.Unlock()

	result.NewPositionID = fmt.Sprintf("%s_r%d", position.ID, seq)
	result.CompletedAt = e.now()

	log.Info().
		Str("newPositionID", result.NewPositionID).
		Msg("[SIMULATION] Rebalance complete")

	return result, nil
}

func (e *SimulatedExecutor) runStep(ctx context.Context, positionID, step string) error {
	if e.failOn != nil {
		if err := e.failOn(positionID, step); err != nil {
			return err
		}
	}
	if e.stepDelay == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(e.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
