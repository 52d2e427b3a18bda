package state

import (
	"context"
	"fmt"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/lib/pq"
)

// MonitorStats aggregates every stored cycle.
type MonitorStats struct {
	TotalCycles      int       `json:"total_cycles"`
	CyclesWithErrors int       `json:"cycles_with_errors"`
	TotalRecommended int       `json:"total_recommended"`
	TotalExecuted    int       `json:"total_executed"`
	TotalFailed      int       `json:"total_failed"`
	LatestValueUSD   float64   `json:"latest_value_usd"`
	LastCycleAt      time.Time `json:"last_cycle_at,omitempty"`
}

// Stats returns aggregate counters over all stored cycles.
func (s *Store) Stats(ctx context.Context) (MonitorStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE fetch_error IS NOT NULL),
			COALESCE(SUM(recommended), 0),
			COALESCE(SUM(executed), 0),
			COALESCE(SUM(failed), 0)
		FROM cycle_summaries`

	var stats MonitorStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalCycles, &stats.CyclesWithErrors,
		&stats.TotalRecommended, &stats.TotalExecuted, &stats.TotalFailed,
	)
	if err != nil {
		return MonitorStats{}, fmt.Errorf("failed to query monitor stats: %w", err)
	}

	if stats.TotalCycles == 0 {
		return stats, nil
	}

	latest, err := s.LatestCycle(ctx)
	if err != nil {
		return MonitorStats{}, err
	}
	stats.LatestValueUSD = latest.TotalValueUSD
	stats.LastCycleAt = latest.StartedAt
	return stats, nil
}

// RebalanceHistory returns executed rebalances for one position, newest first.
func (s *Store) RebalanceHistory(ctx context.Context, positionID string, limit int) ([]types.ExecutionResult, error) {
	if limit <= 0 || limit > maxCycleLimit {
		limit = defaultCycleLimit
	}

	const query = `
		SELECT position_id, new_position_id, new_price_min, new_price_max,
		       new_tick_lower, new_tick_upper, steps, simulated, completed_at
		FROM rebalance_receipts
		WHERE position_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, positionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance history: %w", err)
	}
	defer rows.Close()

	var history []types.ExecutionResult
	for rows.Next() {
		var e types.ExecutionResult
		if err := rows.Scan(
			&e.PositionID, &e.NewPositionID, &e.NewPriceMin, &e.NewPriceMax,
			&e.NewTickLower, &e.NewTickUpper, pq.Array(&e.Steps), &e.Simulated, &e.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance receipt: %w", err)
		}
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rebalance receipts: %w", err)
	}
	return history, nil
}
