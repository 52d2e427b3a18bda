package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPosition() types.PositionSnapshot {
	return types.PositionSnapshot{
		ID:             "position_9WzDXwBb_2",
		PoolName:       "RAY/SOL",
		CurrentPrice:   0.0335,
		PriceMin:       0.020,
		PriceMax:       0.030,
		TotalValueUSD:  850,
		IsOutOfRange:   true,
		Liquidity:      "80000",
		Token0Amount:   5000,
		Token1Amount:   1.25,
		PendingFeesUSD: 5.75,
	}
}

func TestCloseAndReopen(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exec, err := NewSimulatedExecutor(Config{SlippagePercent: 0.5, Clock: func() time.Time { return fixed }})
	require.NoError(t, err)

	result, err := exec.CloseAndReopen(context.Background(), testPosition(), 0.03015, 0.03685)
	require.NoError(t, err)

	assert.True(t, result.Simulated)
	assert.Equal(t, "position_9WzDXwBb_2_r1", result.NewPositionID)
	assert.Equal(t, []string{"decrease_liquidity", "collect_fees", "close_position", "open_position", "increase_liquidity"}, result.Steps)
	assert.Less(t, result.NewTickLower, result.NewTickUpper)
	assert.Equal(t, fixed, result.CompletedAt)

	result, err = exec.CloseAndReopen(context.Background(), testPosition(), 0.03015, 0.03685)
	require.NoError(t, err)
	assert.Equal(t, "position_9WzDXwBb_2_r2", result.NewPositionID)
}

func TestCloseAndReopenFailureInjection(t *testing.T) {
	injected := errors.New("blockhash expired")
	exec, err := NewSimulatedExecutor(Config{
		FailOn: func(positionID, step string) error {
			if step == "open_position" {
				return injected
			}
			return nil
		},
	})
	require.NoError(t, err)

	result, err := exec.CloseAndReopen(context.Background(), testPosition(), 0.03, 0.037)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, []string{"decrease_liquidity", "collect_fees", "close_position"}, result.Steps)
	assert.Empty(t, result.NewPositionID)
}

func TestCloseAndReopenHonoursContext(t *testing.T) {
	exec, err := NewSimulatedExecutor(Config{StepDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = exec.CloseAndReopen(ctx, testPosition(), 0.03, 0.037)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseAndReopenValidatesInput(t *testing.T) {
	exec, err := NewSimulatedExecutor(Config{})
	require.NoError(t, err)

	_, err = exec.CloseAndReopen(context.Background(), testPosition(), 0.04, 0.03)
	assert.ErrorIs(t, err, ErrInvalidRange)

	invalid := testPosition()
	invalid.CurrentPrice = 0
	_, err = exec.CloseAndReopen(context.Background(), invalid, 0.03, 0.037)
	assert.ErrorIs(t, err, types.ErrInvalidSnapshot)
}

func TestNewSimulatedExecutorValidation(t *testing.T) {
	_, err := NewSimulatedExecutor(Config{StepDelay: -time.Second})
	assert.Error(t, err)

	_, err = NewSimulatedExecutor(Config{SlippagePercent: 100})
	assert.Error(t, err)
}
