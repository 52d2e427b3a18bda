package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
)

// ErrNoCycles is returned when no cycle has been recorded yet.
var ErrNoCycles = errors.New("no cycles recorded")

// Store persists cycle summaries and rebalance receipts in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to databaseURL (a lib/pq connection string or URL) and
// verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewStore(db)
	store.logger.Info().Msg("Successfully connected to the PostgreSQL database")
	return store, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: logger.GetForComponent("cycle_store"),
	}
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.logger.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database connection")
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS cycle_summaries (
		summary_id BIGSERIAL PRIMARY KEY,
		cycle_id UUID NOT NULL UNIQUE,
		cycle_number INTEGER NOT NULL,
		wallet_address VARCHAR(64) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		total_positions INTEGER NOT NULL,
		out_of_range INTEGER NOT NULL,
		total_value_usd DECIMAL(20, 8) NOT NULL,
		total_pending_fees_usd DECIMAL(20, 8) NOT NULL,
		evaluated INTEGER NOT NULL,
		recommended INTEGER NOT NULL,
		executed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		compound_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		fetch_error TEXT,
		results JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_summaries_started_at ON cycle_summaries(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_cycle_summaries_wallet ON cycle_summaries(wallet_address, started_at DESC);

	CREATE TABLE IF NOT EXISTS rebalance_receipts (
		receipt_id BIGSERIAL PRIMARY KEY,
		cycle_id UUID NOT NULL,
		position_id VARCHAR(128) NOT NULL,
		new_position_id VARCHAR(128),
		new_price_min DOUBLE PRECISION NOT NULL,
		new_price_max DOUBLE PRECISION NOT NULL,
		new_tick_lower INTEGER NOT NULL,
		new_tick_upper INTEGER NOT NULL,
		steps TEXT[],
		simulated BOOLEAN NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rebalance_receipts_position ON rebalance_receipts(position_id, completed_at DESC);

	CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	INSERT INTO cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// EnsureSchema applies the DDL. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	s.logger.Info().Msg("Database schema ensured")
	return nil
}

// DropSchema removes every table owned by the store.
func (s *Store) DropSchema(ctx context.Context) error {
	const dropSQL = `
		DROP TABLE IF EXISTS rebalance_receipts CASCADE;
		DROP TABLE IF EXISTS cycle_summaries CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	s.logger.Warn().Msg("Dropped all monitor tables")
	return nil
}
