package monitor

import (
	"context"
	"fmt"

	"github.com/elys-network/clmm-monitor/internal/strategy"
	"github.com/elys-network/clmm-monitor/internal/types"
)

// Evaluation is the outcome of a manual rebalance request.
type Evaluation struct {
	Position  types.PositionSnapshot  `json:"position"`
	Decision  types.RebalanceDecision `json:"decision"`
	Proceed   bool                    `json:"proceed"` // Decision accepted, or forced
	Forced    bool                    `json:"forced"`  // Proceeding only because of Force
	Execution *types.ExecutionResult  `json:"execution,omitempty"`
}

// Evaluate runs the engine against one position of walletAddress.
//
// Force proceeds with the computed range even when the decision rejects, but
// an invalid snapshot is always rejected. RangePercent overrides the range
// width for this call only. With Execute set, a proceeding evaluation claims
// the cooldown before the executor runs and releases it if execution fails.
func (m *Monitor) Evaluate(ctx context.Context, walletAddress, positionID string, opts types.RebalanceOptions) (Evaluation, error) {
	if opts.RangePercent < 0 || opts.RangePercent >= 100 {
		return Evaluation{}, fmt.Errorf("range percent must be in [0, 100): %f", opts.RangePercent)
	}
	if opts.Execute && m.executor == nil {
		return Evaluation{}, ErrNoExecutor
	}

	positions, err := m.source.GetWalletPositions(ctx, walletAddress)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to fetch positions: %w", err)
	}

	var (
		position types.PositionSnapshot
		found    bool
	)
	for _, p := range positions {
		if p.ID == positionID {
			position, found = p, true
			break
		}
	}
	if !found {
		return Evaluation{}, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	if err := position.Validate(); err != nil {
		return Evaluation{}, err
	}

	var (
		decision types.RebalanceDecision
		claim    *strategy.Claim
	)
	if opts.Execute {
		decision, claim = m.engine.TryClaimRebalanceWithOptions(position, opts)
	} else {
		decision = m.engine.Evaluate(position, opts)
	}
	eval := Evaluation{
		Position: position,
		Decision: decision,
		Proceed:  decision.ShouldRebalance || opts.Force,
		Forced:   !decision.ShouldRebalance && opts.Force,
	}

	m.logger.Info().
		Str("positionID", positionID).
		Bool("shouldRebalance", decision.ShouldRebalance).
		Bool("forced", eval.Forced).
		Str("reason", decision.Reason).
		Msg("Manual evaluation")

	if !opts.Execute || !eval.Proceed {
		return eval, nil
	}

	execution, err := m.executor.CloseAndReopen(ctx, position, decision.NewPriceMin, decision.NewPriceMax)
	if err != nil {
		m.engine.ReleaseClaim(claim)
		return eval, fmt.Errorf("rebalance of %s failed: %w", positionID, err)
	}
	eval.Execution = &execution
	return eval, nil
}
