// Package monitor runs the periodic position check: fetch the wallet's
// positions, evaluate the out-of-range ones, alert, optionally rebalance,
// and record the cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elys-network/clmm-monitor/internal/executor"
	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/strategy"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCycleInProgress is returned by RunCycle when another cycle holds the slot.
	ErrCycleInProgress = errors.New("monitor cycle already in progress")
	// ErrPositionNotFound is returned by Evaluate for an unknown position id.
	ErrPositionNotFound = errors.New("position not found")
	// ErrNoExecutor is returned when execution is requested without an executor.
	ErrNoExecutor = errors.New("no executor configured")
)

// PositionSource lists the positions held by a wallet.
type PositionSource interface {
	GetWalletPositions(ctx context.Context, walletAddress string) ([]types.PositionSnapshot, error)
}

// Notifier receives cycle events. Errors are logged and otherwise ignored.
type Notifier interface {
	SendCheckSummary(ctx context.Context, summary types.CycleSummary) error
	SendRebalanceAlert(ctx context.Context, position types.PositionSnapshot, decision types.RebalanceDecision) error
	SendRebalanceExecuted(ctx context.Context, position types.PositionSnapshot, result types.ExecutionResult) error
	SendError(ctx context.Context, err error) error
}

// CycleStore persists cycle summaries.
type CycleStore interface {
	NextCycleNumber(ctx context.Context) (int, error)
	SaveCycle(ctx context.Context, summary types.CycleSummary) (int64, error)
}

// Monitor owns the engine shared by scheduled cycles and manual evaluations.
type Monitor struct {
	logger   zerolog.Logger
	wallet   string
	engine   *strategy.Engine
	source   PositionSource
	executor executor.Executor
	notifier Notifier
	store    CycleStore
	metrics  *Metrics
	gas      strategy.Refresher
	now      func() time.Time

	autoRebalance          bool
	autoCompound           bool
	minHarvestThresholdUSD float64

	cycleMu     sync.Mutex // Held for the whole cycle
	cycleNumber int        // Fallback numbering when no store is configured

	latestMu sync.RWMutex
	latest   *types.CycleSummary
}

// Config holds the configuration for creating a new Monitor
type Config struct {
	WalletAddress string
	Engine        *strategy.Engine
	Source        PositionSource
	Executor      executor.Executor // Required when AutoRebalance is set
	Notifier      Notifier
	Store         CycleStore         // Optional
	Metrics       *Metrics           // Optional
	GasRefresher  strategy.Refresher // Optional, refreshed at the start of every cycle
	Clock         func() time.Time

	AutoRebalance          bool
	AutoCompound           bool
	MinHarvestThresholdUSD float64
}

// NewMonitor creates a Monitor. The engine is used as given and never copied.
func NewMonitor(cfg Config) (*Monitor, error) {
	if err := validateMonitorConfig(cfg); err != nil {
		return nil, fmt.Errorf("monitor configuration validation failed: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	m := &Monitor{
		logger:                 logger.GetForComponent("monitor"),
		wallet:                 cfg.WalletAddress,
		engine:                 cfg.Engine,
		source:                 cfg.Source,
		executor:               cfg.Executor,
		notifier:               cfg.Notifier,
		store:                  cfg.Store,
		metrics:                cfg.Metrics,
		gas:                    cfg.GasRefresher,
		now:                    clock,
		autoRebalance:          cfg.AutoRebalance,
		autoCompound:           cfg.AutoCompound,
		minHarvestThresholdUSD: cfg.MinHarvestThresholdUSD,
	}

	m.logger.Info().
		Str("wallet", m.wallet).
		Bool("autoRebalance", m.autoRebalance).
		Bool("autoCompound", m.autoCompound).
		Bool("persistence", m.store != nil).
		Msg("Monitor created")
	return m, nil
}

func validateMonitorConfig(cfg Config) error {
	if cfg.WalletAddress == "" {
		return errors.New("wallet address cannot be empty")
	}
	if cfg.Engine == nil {
		return errors.New("engine cannot be nil")
	}
	if cfg.Source == nil {
		return errors.New("position source cannot be nil")
	}
	if cfg.Notifier == nil {
		return errors.New("notifier cannot be nil")
	}
	if cfg.AutoRebalance && cfg.Executor == nil {
		return errors.New("auto-rebalance requires an executor")
	}
	if cfg.MinHarvestThresholdUSD < 0 {
		return fmt.Errorf("min harvest threshold cannot be negative: %f", cfg.MinHarvestThresholdUSD)
	}
	return nil
}

// WalletAddress returns the monitored wallet.
func (m *Monitor) WalletAddress() string {
	return m.wallet
}

// Run executes a cycle immediately and then on every tick until ctx is
// cancelled. Cycles run on the loop goroutine, so they never overlap. A cycle
// that is running when ctx is cancelled completes before Run returns.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive: %s", interval)
	}

	m.logger.Info().Dur("interval", interval).Msg("Starting monitor loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.runScheduledCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Monitor loop stopped due to context cancellation")
			return nil
		case <-ticker.C:
			m.runScheduledCycle(ctx)
		}
	}
}

func (m *Monitor) runScheduledCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := m.RunCycle(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrCycleInProgress):
		m.logger.Warn().Msg("Skipping scheduled cycle: a manual cycle is still running")
	case err != nil:
		m.logger.Error().Err(err).Msg("Monitor cycle failed")
	}
}

// RunCycle executes one complete check. A call made while another cycle is
// running returns ErrCycleInProgress immediately.
func (m *Monitor) RunCycle(ctx context.Context) (types.CycleSummary, error) {
	if !m.cycleMu.TryLock() {
		return types.CycleSummary{}, ErrCycleInProgress
	}
	defer m.cycleMu.Unlock()

	startedAt := m.now()
	summary := types.CycleSummary{
		CycleID:       uuid.New().String(),
		WalletAddress: m.wallet,
		StartedAt:     startedAt,
	}
	cycleLogger := m.logger.With().Str("cycle_id", summary.CycleID).Logger()
	summary.CycleNumber = m.nextCycleNumber(ctx, cycleLogger)

	cycleLogger.Info().Int("cycleNumber", summary.CycleNumber).Msg("--- Starting monitor cycle ---")

	if m.gas != nil {
		if err := m.gas.Refresh(ctx); err != nil {
			cycleLogger.Warn().Err(err).Msg("Gas price refresh failed, using previous estimate")
		}
	}

	positions, err := m.source.GetWalletPositions(ctx, m.wallet)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to fetch positions")
		summary.FetchError = err.Error()
		if notifyErr := m.notifier.SendError(ctx, err); notifyErr != nil {
			cycleLogger.Warn().Err(notifyErr).Msg("Failed to send error notification")
		}
		m.finishCycle(ctx, &summary, cycleLogger)
		return summary, fmt.Errorf("failed to fetch positions: %w", err)
	}

	// Invalid snapshots are reported as failed results and stay out of the totals.
	invalid := make([]error, len(positions))
	for i, p := range positions {
		if err := p.Validate(); err != nil {
			invalid[i] = err
			continue
		}
		summary.TotalPositions++
		if p.IsOutOfRange {
			summary.OutOfRange++
		}
		summary.TotalValueUSD += p.TotalValueUSD
		summary.TotalPendingFeesUSD += p.PendingFeesUSD
	}
	cycleLogger.Info().
		Int("positions", summary.TotalPositions).
		Int("outOfRange", summary.OutOfRange).
		Float64("totalValueUSD", summary.TotalValueUSD).
		Float64("pendingFeesUSD", summary.TotalPendingFeesUSD).
		Msg("Positions fetched")

	summary.Results = make([]types.PositionResult, 0, len(positions))
	for i, p := range positions {
		if invalid[i] != nil {
			cycleLogger.Error().Err(invalid[i]).Str("positionID", p.ID).Msg("Skipping invalid position snapshot")
			summary.Failed++
			// Only identity fields; the numeric ones may not be JSON-encodable.
			summary.Results = append(summary.Results, types.PositionResult{
				Snapshot: types.PositionSnapshot{ID: p.ID, PoolName: p.PoolName, PoolAddress: p.PoolAddress},
				Status:   types.StatusFailed,
				Error:    invalid[i].Error(),
			})
			continue
		}
		result := m.processPosition(ctx, p, &summary, cycleLogger)
		summary.Results = append(summary.Results, result)
	}

	if m.autoCompound && summary.TotalPendingFeesUSD > m.minHarvestThresholdUSD {
		summary.CompoundEligible = true
		cycleLogger.Info().
			Float64("pendingFeesUSD", summary.TotalPendingFeesUSD).
			Float64("thresholdUSD", m.minHarvestThresholdUSD).
			Msg("Pending fees above compound threshold; harvesting is not automated")
	}

	if len(positions) > 0 {
		if err := m.notifier.SendCheckSummary(ctx, summary); err != nil {
			cycleLogger.Warn().Err(err).Msg("Failed to send check summary")
		}
	} else {
		cycleLogger.Info().Msg("No positions found for wallet")
	}

	m.finishCycle(ctx, &summary, cycleLogger)
	return summary, nil
}

func (m *Monitor) processPosition(ctx context.Context, p types.PositionSnapshot, summary *types.CycleSummary, cycleLogger zerolog.Logger) types.PositionResult {
	result := types.PositionResult{Snapshot: p, Status: types.StatusInRange}
	if !p.IsOutOfRange {
		return result
	}

	posLogger := cycleLogger.With().Str("positionID", p.ID).Str("pool", p.PoolName).Logger()

	summary.Evaluated++
	var (
		decision types.RebalanceDecision
		claim    *strategy.Claim
	)
	if m.autoRebalance {
		decision, claim = m.engine.TryClaimRebalance(p)
	} else {
		decision = m.engine.ShouldRebalance(p)
	}
	result.Decision = &decision

	posLogger.Info().
		Bool("shouldRebalance", decision.ShouldRebalance).
		Str("reason", decision.Reason).
		Float64("newPriceMin", decision.NewPriceMin).
		Float64("newPriceMax", decision.NewPriceMax).
		Float64("gasUSD", decision.EstimatedGasCost).
		Msg("Position evaluated")

	if err := m.notifier.SendRebalanceAlert(ctx, p, decision); err != nil {
		posLogger.Warn().Err(err).Msg("Failed to send rebalance alert")
	}

	if !decision.ShouldRebalance {
		result.Status = types.StatusWaiting
		return result
	}
	summary.Recommended++

	if !m.autoRebalance {
		result.Status = types.StatusRecommended
		return result
	}

	execution, err := m.executor.CloseAndReopen(ctx, p, decision.NewPriceMin, decision.NewPriceMax)
	if err != nil {
		m.engine.ReleaseClaim(claim)
		summary.Failed++
		result.Status = types.StatusFailed
		result.Error = err.Error()
		posLogger.Error().Err(err).Strs("completedSteps", execution.Steps).Msg("Rebalance execution failed")
		if notifyErr := m.notifier.SendError(ctx, fmt.Errorf("rebalance of %s failed: %w", p.ID, err)); notifyErr != nil {
			posLogger.Warn().Err(notifyErr).Msg("Failed to send error notification")
		}
		return result
	}

	summary.Executed++
	result.Status = types.StatusRebalanced
	result.Execution = &execution
	posLogger.Info().Str("newPositionID", execution.NewPositionID).Msg("Rebalance executed")
	if err := m.notifier.SendRebalanceExecuted(ctx, p, execution); err != nil {
		posLogger.Warn().Err(err).Msg("Failed to send rebalance confirmation")
	}
	return result
}

func (m *Monitor) nextCycleNumber(ctx context.Context, cycleLogger zerolog.Logger) int {
	m.cycleNumber++
	if m.store == nil {
		return m.cycleNumber
	}

	n, err := m.store.NextCycleNumber(ctx)
	if err != nil {
		cycleLogger.Warn().Err(err).Int("fallback", m.cycleNumber).Msg("Failed to get persistent cycle number")
		return m.cycleNumber
	}
	m.cycleNumber = n
	return n
}

func (m *Monitor) finishCycle(ctx context.Context, summary *types.CycleSummary, cycleLogger zerolog.Logger) {
	summary.Duration = m.now().Sub(summary.StartedAt)

	if m.store != nil {
		id, err := m.store.SaveCycle(ctx, *summary)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to persist cycle summary")
		} else {
			summary.SummaryID = id
		}
	}

	m.metrics.ObserveCycle(*summary, m.engine.EstimateGasCost())

	latest := *summary
	m.latestMu.Lock()
	m.latest = &latest
	m.latestMu.Unlock()

	cycleLogger.Info().
		Dur("duration", summary.Duration).
		Int("evaluated", summary.Evaluated).
		Int("recommended", summary.Recommended).
		Int("executed", summary.Executed).
		Int("failed", summary.Failed).
		Msg("--- Monitor cycle completed ---")
}

// Latest returns the most recent cycle summary, if any cycle has run.
func (m *Monitor) Latest() (types.CycleSummary, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	if m.latest == nil {
		return types.CycleSummary{}, false
	}
	return *m.latest, true
}

// Positions fetches the current positions of the monitored wallet.
func (m *Monitor) Positions(ctx context.Context) ([]types.PositionSnapshot, error) {
	return m.source.GetWalletPositions(ctx, m.wallet)
}
