package strategy

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testRebalanceConfig() types.RebalanceConfig {
	return types.RebalanceConfig{
		PriceMovementThreshold: 5,
		DefaultRangePercent:    10,
		MinRebalanceInterval:   time.Hour,
		MaxGasCostUSD:          5,
		MinPositionValueUSD:    100,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine, err := NewEngine(Config{Rebalance: testRebalanceConfig(), Clock: clock.Now})
	require.NoError(t, err)
	return engine, clock
}

func outOfRangePosition() types.PositionSnapshot {
	return types.PositionSnapshot{
		ID:             "pos-A",
		PoolName:       "SOL/USDC",
		CurrentPrice:   120,
		PriceMin:       95,
		PriceMax:       105,
		TotalValueUSD:  2000,
		IsOutOfRange:   true,
		Liquidity:      "150000",
		PendingFeesUSD: 20,
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testRebalanceConfig()
	cfg.DefaultRangePercent = 0

	_, err := NewEngine(Config{Rebalance: cfg})
	assert.ErrorIs(t, err, types.ErrInvalidRebalanceConfig)
}

func TestShouldRebalanceAccepts(t *testing.T) {
	engine, _ := newTestEngine(t)

	decision := engine.ShouldRebalance(outOfRangePosition())

	assert.True(t, decision.ShouldRebalance)
	assert.Equal(t, types.ActionRebalance, decision.RecommendedAction)
	assert.InDelta(t, 108.0, decision.NewPriceMin, 1e-9)
	assert.InDelta(t, 132.0, decision.NewPriceMax, 1e-9)
	assert.InDelta(t, 0.003, decision.EstimatedGasCost, 1e-12)
	assert.InDelta(t, 15.0, decision.PriceMovement, 1e-9)
	assert.Equal(t, "Position out of range by 15.00%, rebalancing recommended", decision.Reason)
}

func TestShouldRebalanceBelowMinimumValue(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()
	position.TotalValueUSD = 50

	decision := engine.ShouldRebalance(position)

	assert.False(t, decision.ShouldRebalance)
	assert.Equal(t, types.ActionWait, decision.RecommendedAction)
	assert.Equal(t, "Position value ($50.00) below minimum ($100.00)", decision.Reason)
	// The proposed range and gas estimate are filled in even on rejection.
	assert.InDelta(t, 108.0, decision.NewPriceMin, 1e-9)
	assert.InDelta(t, 132.0, decision.NewPriceMax, 1e-9)
	assert.InDelta(t, 0.003, decision.EstimatedGasCost, 1e-12)
	assert.Zero(t, decision.PriceMovement)
}

func TestShouldRebalanceCooldown(t *testing.T) {
	engine, clock := newTestEngine(t)
	position := outOfRangePosition()

	decision, claim := engine.TryClaimRebalance(position)
	require.True(t, decision.ShouldRebalance)
	require.NotNil(t, claim)

	clock.Advance(10 * time.Minute)
	decision = engine.ShouldRebalance(position)
	assert.False(t, decision.ShouldRebalance)
	assert.Equal(t, "Too soon since last rebalance (50 min remaining)", decision.Reason)

	clock.Advance(50 * time.Minute)
	decision = engine.ShouldRebalance(position)
	assert.True(t, decision.ShouldRebalance, decision.Reason)
}

func TestShouldRebalanceInRangeAlwaysWaits(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, price := range []float64{95, 100, 105, 99.99} {
		position := outOfRangePosition()
		position.CurrentPrice = price
		position.IsOutOfRange = false
		position.PendingFeesUSD = 10_000

		decision := engine.ShouldRebalance(position)
		assert.False(t, decision.ShouldRebalance)
		assert.Equal(t, types.ActionWait, decision.RecommendedAction)
		assert.Equal(t, "Position is still in range", decision.Reason)
	}
}

func TestShouldRebalanceMovementBelowThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()
	position.CurrentPrice = 106

	decision := engine.ShouldRebalance(position)

	assert.False(t, decision.ShouldRebalance)
	assert.Equal(t, "Price movement (1.00%) below threshold (5%)", decision.Reason)
	assert.InDelta(t, 1.0, decision.PriceMovement, 1e-9)
}

func TestShouldRebalanceGasCeiling(t *testing.T) {
	engine, err := NewEngine(Config{
		Rebalance:    testRebalanceConfig(),
		GasEstimator: FixedGasEstimator{CloseFeeSOL: 0.05, CreateFeeSOL: 0.05, SOLPriceUSD: 100},
	})
	require.NoError(t, err)

	decision := engine.ShouldRebalance(outOfRangePosition())

	assert.False(t, decision.ShouldRebalance)
	assert.Equal(t, "Estimated gas cost ($10.00) exceeds maximum ($5.00)", decision.Reason)
	assert.InDelta(t, 10.0, decision.EstimatedGasCost, 1e-9)
}

func TestShouldRebalanceProfitability(t *testing.T) {
	cfg := testRebalanceConfig()
	cfg.MaxGasCostUSD = 50
	engine, err := NewEngine(Config{
		Rebalance:    cfg,
		GasEstimator: FixedGasEstimator{CloseFeeSOL: 0.1, CreateFeeSOL: 0.1, SOLPriceUSD: 100},
	})
	require.NoError(t, err)

	// gas = $20, fees = $5, gas share = 20/2000 = 1%: not strictly below 1%.
	position := outOfRangePosition()
	position.PendingFeesUSD = 5
	decision := engine.ShouldRebalance(position)
	assert.False(t, decision.ShouldRebalance)
	assert.Equal(t, "Rebalancing costs exceed potential benefits", decision.Reason)

	// Larger position, same fees: gas share 0.5%.
	position.TotalValueUSD = 4000
	decision = engine.ShouldRebalance(position)
	assert.True(t, decision.ShouldRebalance, decision.Reason)

	// Fees cover gas on their own.
	position.TotalValueUSD = 2000
	position.PendingFeesUSD = 20
	decision = engine.ShouldRebalance(position)
	assert.True(t, decision.ShouldRebalance, decision.Reason)
}

func TestCriteriaOrderMinimumValueBeforeRange(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()
	position.TotalValueUSD = 10
	position.IsOutOfRange = false

	decision := engine.ShouldRebalance(position)
	assert.Contains(t, decision.Reason, "below minimum")
}

func TestCalculateNewRangeIsSymmetric(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, price := range []float64{0.025, 1, 100.5, 120, 64_000} {
		position := outOfRangePosition()
		position.CurrentPrice = price

		low, high := engine.CalculateNewRange(position)
		assert.InDelta(t, price, (low+high)/2, 1e-9*price, "price %f", price)
		assert.InDelta(t, price*0.2, high-low, 1e-9*price, "price %f", price)
	}

	low, high := engine.CalculateNewRangeWithPercent(outOfRangePosition(), 25)
	assert.InDelta(t, 90.0, low, 1e-9)
	assert.InDelta(t, 150.0, high, 1e-9)
}

func TestEvaluateRangeOverride(t *testing.T) {
	engine, _ := newTestEngine(t)

	decision := engine.Evaluate(outOfRangePosition(), types.RebalanceOptions{RangePercent: 5})
	assert.True(t, decision.ShouldRebalance)
	assert.InDelta(t, 114.0, decision.NewPriceMin, 1e-9)
	assert.InDelta(t, 126.0, decision.NewPriceMax, 1e-9)

	// The override does not stick.
	decision = engine.ShouldRebalance(outOfRangePosition())
	assert.InDelta(t, 108.0, decision.NewPriceMin, 1e-9)
}

func TestPriceMovement(t *testing.T) {
	position := outOfRangePosition()

	for _, price := range []float64{95, 97.5, 100, 105} {
		position.CurrentPrice = price
		assert.Zero(t, PriceMovement(position), "price %f", price)
	}

	prev := 0.0
	for _, price := range []float64{105.01, 106, 110, 150, 1000} {
		position.CurrentPrice = price
		movement := PriceMovement(position)
		assert.Greater(t, movement, prev, "price %f", price)
		prev = movement
	}

	prev = 0.0
	for _, price := range []float64{94.99, 90, 50, 1} {
		position.CurrentPrice = price
		movement := PriceMovement(position)
		assert.Greater(t, movement, prev, "price %f", price)
		prev = movement
	}

	position.CurrentPrice = 90
	assert.InDelta(t, 5.0, PriceMovement(position), 1e-9)
}

func TestCooldownMinutesNonIncreasing(t *testing.T) {
	engine, clock := newTestEngine(t)
	position := outOfRangePosition()
	engine.RecordRebalance(position.ID)

	prev := 61
	for elapsed := time.Duration(0); elapsed < time.Hour; elapsed += 7 * time.Minute {
		decision := engine.ShouldRebalance(position)
		require.False(t, decision.ShouldRebalance)

		var minutes int
		_, err := fmt.Sscanf(decision.Reason, "Too soon since last rebalance (%d min remaining)", &minutes)
		require.NoError(t, err, decision.Reason)
		assert.LessOrEqual(t, minutes, prev)
		assert.Positive(t, minutes)
		prev = minutes

		clock.Advance(7 * time.Minute)
	}

	last, ok := engine.LastRebalance(position.ID)
	require.True(t, ok)
	clock.Advance(last.Add(time.Hour).Sub(clock.Now()))
	assert.True(t, engine.ShouldRebalance(position).ShouldRebalance)
}

func TestCooldownRoundsUpPartialMinutes(t *testing.T) {
	engine, clock := newTestEngine(t)
	position := outOfRangePosition()
	engine.RecordRebalance(position.ID)

	clock.Advance(59*time.Minute + 30*time.Second)
	decision := engine.ShouldRebalance(position)
	assert.Equal(t, "Too soon since last rebalance (1 min remaining)", decision.Reason)
}

func TestCooldownIsPerPosition(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.RecordRebalance("other")

	assert.True(t, engine.ShouldRebalance(outOfRangePosition()).ShouldRebalance)
}

func TestReleaseClaimRestoresPreviousState(t *testing.T) {
	engine, clock := newTestEngine(t)
	position := outOfRangePosition()

	_, claim := engine.TryClaimRebalance(position)
	require.NotNil(t, claim)
	engine.ReleaseClaim(claim)
	_, ok := engine.LastRebalance(position.ID)
	assert.False(t, ok)

	engine.RecordRebalance(position.ID)
	first, _ := engine.LastRebalance(position.ID)
	clock.Advance(2 * time.Hour)

	_, claim = engine.TryClaimRebalance(position)
	require.NotNil(t, claim)
	engine.ReleaseClaim(claim)
	restored, ok := engine.LastRebalance(position.ID)
	require.True(t, ok)
	assert.Equal(t, first, restored)

	engine.ReleaseClaim(nil)
}

func TestTryClaimRebalanceRejectedReturnsNoClaim(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()
	position.IsOutOfRange = false

	decision, claim := engine.TryClaimRebalance(position)
	assert.False(t, decision.ShouldRebalance)
	assert.Nil(t, claim)
	_, ok := engine.LastRebalance(position.ID)
	assert.False(t, ok)
}

func TestTryClaimRebalanceConcurrent(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, claim := engine.TryClaimRebalance(position); claim != nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}

func TestGetRecommendedAction(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.Equal(t, "REBALANCE: Position out of range by 15.00%, rebalancing recommended",
		engine.GetRecommendedAction(outOfRangePosition()))

	position := outOfRangePosition()
	position.IsOutOfRange = false
	assert.Equal(t, "WAIT: Position is still in range", engine.GetRecommendedAction(position))
}

func TestShouldRebalanceRejectsInvalidSnapshots(t *testing.T) {
	engine, _ := newTestEngine(t)

	cases := map[string]func(p *types.PositionSnapshot){
		"range straddles zero":  func(p *types.PositionSnapshot) { p.PriceMin = -105; p.PriceMax = 105 },
		"zero price min":        func(p *types.PositionSnapshot) { p.PriceMin = 0 },
		"zero current price":    func(p *types.PositionSnapshot) { p.CurrentPrice = 0 },
		"reversed range":        func(p *types.PositionSnapshot) { p.PriceMin, p.PriceMax = p.PriceMax, p.PriceMin },
		"NaN current price":     func(p *types.PositionSnapshot) { p.CurrentPrice = math.NaN() },
		"NaN pending fees":      func(p *types.PositionSnapshot) { p.PendingFeesUSD = math.NaN() },
		"infinite total value":  func(p *types.PositionSnapshot) { p.TotalValueUSD = math.Inf(1) },
		"negative pending fees": func(p *types.PositionSnapshot) { p.PendingFeesUSD = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			position := outOfRangePosition()
			mutate(&position)
			require.ErrorIs(t, position.Validate(), types.ErrInvalidSnapshot)

			decision := engine.ShouldRebalance(position)
			assert.False(t, decision.ShouldRebalance)
			assert.Equal(t, types.ActionWait, decision.RecommendedAction)
			assert.Contains(t, decision.Reason, "Invalid position snapshot")
			assert.Zero(t, decision.PriceMovement)
			assert.False(t, math.IsInf(decision.NewPriceMin, 0) || math.IsNaN(decision.NewPriceMin))

			assert.Contains(t, engine.GetRecommendedAction(position), "WAIT: Invalid position snapshot")

			_, claim := engine.TryClaimRebalanceWithOptions(position, types.RebalanceOptions{Force: true})
			assert.Nil(t, claim)
			_, recorded := engine.LastRebalance(position.ID)
			assert.False(t, recorded)
		})
	}
}

func TestTryClaimRebalanceWithOptionsForce(t *testing.T) {
	engine, _ := newTestEngine(t)
	position := outOfRangePosition()
	position.IsOutOfRange = false
	position.CurrentPrice = 100

	decision, claim := engine.TryClaimRebalanceWithOptions(position, types.RebalanceOptions{Force: true, RangePercent: 5})
	assert.False(t, decision.ShouldRebalance)
	require.NotNil(t, claim)
	assert.InDelta(t, 95.0, decision.NewPriceMin, 1e-9)
	assert.InDelta(t, 105.0, decision.NewPriceMax, 1e-9)

	_, recorded := engine.LastRebalance(position.ID)
	assert.True(t, recorded)

	engine.ReleaseClaim(claim)
	_, recorded = engine.LastRebalance(position.ID)
	assert.False(t, recorded)
}
