package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CurrentCycleNumber returns the last cycle number handed out.
func (s *Store) CurrentCycleNumber(ctx context.Context) (int, error) {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT current_cycle FROM cycle_counter WHERE id = 1`).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn().Msg("No cycle counter row found, treating as 0")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}
	return current, nil
}

// NextCycleNumber increments the persistent counter and returns the new value.
// Numbering continues across restarts.
func (s *Store) NextCycleNumber(ctx context.Context) (int, error) {
	const query = `
		UPDATE cycle_counter
		SET current_cycle = current_cycle + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle`

	var next int
	if err := s.db.QueryRowContext(ctx, query).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}
	s.logger.Debug().Int("cycle_number", next).Msg("Incremented cycle counter")
	return next, nil
}

// ResetCycleNumber sets the counter to a specific value (maintenance only).
func (s *Store) ResetCycleNumber(ctx context.Context, cycleNumber int) error {
	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE cycle_counter SET current_cycle = $1, updated_at = CURRENT_TIMESTAMP WHERE id = 1`,
		cycleNumber)
	if err != nil {
		return fmt.Errorf("failed to reset cycle number to %d: %w", cycleNumber, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.New("no rows updated when resetting cycle number")
	}

	s.logger.Warn().Int("cycle_number", cycleNumber).Msg("Reset cycle counter")
	return nil
}
