package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/lib/pq"
)

const (
	defaultCycleLimit = 10
	maxCycleLimit     = 100
)

// SaveCycle stores a cycle summary together with a receipt for every executed
// rebalance, in one transaction. It returns the summary id.
func (s *Store) SaveCycle(ctx context.Context, summary types.CycleSummary) (int64, error) {
	resultsJSON, err := json.Marshal(summary.Results)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertSummary = `
		INSERT INTO cycle_summaries (
			cycle_id, cycle_number, wallet_address, started_at, duration_ms,
			total_positions, out_of_range, total_value_usd, total_pending_fees_usd,
			evaluated, recommended, executed, failed, compound_eligible,
			fetch_error, results
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING summary_id`

	var summaryID int64
	err = tx.QueryRowContext(ctx, insertSummary,
		summary.CycleID, summary.CycleNumber, summary.WalletAddress, summary.StartedAt, summary.Duration.Milliseconds(),
		summary.TotalPositions, summary.OutOfRange, summary.TotalValueUSD, summary.TotalPendingFeesUSD,
		summary.Evaluated, summary.Recommended, summary.Executed, summary.Failed, summary.CompoundEligible,
		nullString(summary.FetchError), resultsJSON,
	).Scan(&summaryID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle summary: %w", err)
	}

	const insertReceipt = `
		INSERT INTO rebalance_receipts (
			cycle_id, position_id, new_position_id, new_price_min, new_price_max,
			new_tick_lower, new_tick_upper, steps, simulated, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	receipts := 0
	for _, r := range summary.Results {
		if r.Execution == nil || r.Status != types.StatusRebalanced {
			continue
		}
		e := r.Execution
		if _, err := tx.ExecContext(ctx, insertReceipt,
			summary.CycleID, e.PositionID, e.NewPositionID, e.NewPriceMin, e.NewPriceMax,
			e.NewTickLower, e.NewTickUpper, pq.Array(e.Steps), e.Simulated, e.CompletedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to save rebalance receipt for %s: %w", e.PositionID, err)
		}
		receipts++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cycle summary: %w", err)
	}

	s.logger.Info().
		Int64("summary_id", summaryID).
		Int("cycle_number", summary.CycleNumber).
		Int("receipts", receipts).
		Msg("Cycle summary saved to database")
	return summaryID, nil
}

const selectSummary = `
	SELECT
		summary_id, cycle_id, cycle_number, wallet_address, started_at, duration_ms,
		total_positions, out_of_range, total_value_usd, total_pending_fees_usd,
		evaluated, recommended, executed, failed, compound_eligible,
		fetch_error, results
	FROM cycle_summaries`

// RecentCycles returns the newest summaries first. limit outside (0, 100]
// falls back to 10.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]types.CycleSummary, error) {
	if limit <= 0 || limit > maxCycleLimit {
		limit = defaultCycleLimit
	}

	rows, err := s.db.QueryContext(ctx, selectSummary+` ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSummary, 0, limit)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to scan cycle row")
			continue
		}
		cycles = append(cycles, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return cycles, nil
}

// LatestCycle returns the newest summary, or ErrNoCycles.
func (s *Store) LatestCycle(ctx context.Context) (types.CycleSummary, error) {
	row := s.db.QueryRowContext(ctx, selectSummary+` ORDER BY started_at DESC LIMIT 1`)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CycleSummary{}, ErrNoCycles
	}
	if err != nil {
		return types.CycleSummary{}, fmt.Errorf("failed to query latest cycle: %w", err)
	}
	return summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (types.CycleSummary, error) {
	var (
		summary     types.CycleSummary
		durationMS  int64
		fetchError  sql.NullString
		resultsJSON []byte
	)
	err := row.Scan(
		&summary.SummaryID, &summary.CycleID, &summary.CycleNumber, &summary.WalletAddress, &summary.StartedAt, &durationMS,
		&summary.TotalPositions, &summary.OutOfRange, &summary.TotalValueUSD, &summary.TotalPendingFeesUSD,
		&summary.Evaluated, &summary.Recommended, &summary.Executed, &summary.Failed, &summary.CompoundEligible,
		&fetchError, &resultsJSON,
	)
	if err != nil {
		return types.CycleSummary{}, err
	}

	summary.Duration = time.Duration(durationMS) * time.Millisecond
	summary.FetchError = fetchError.String
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &summary.Results); err != nil {
			return types.CycleSummary{}, fmt.Errorf("failed to unmarshal results for cycle %s: %w", summary.CycleID, err)
		}
	}
	return summary, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
