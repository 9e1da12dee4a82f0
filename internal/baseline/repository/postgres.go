package repository

import (
	"context"
	"database/sql"
	"errors"

	"continuous-auth/backend/internal/behavior/domain"
)

const (
	upsertBaselineSQL = `INSERT INTO behavior_baselines (user_id, avg_hold_ms, wpm, backspace_count, sample_count, enrolled_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
	avg_hold_ms = EXCLUDED.avg_hold_ms,
	wpm = EXCLUDED.wpm,
	backspace_count = EXCLUDED.backspace_count,
	sample_count = EXCLUDED.sample_count,
	enrolled_at = EXCLUDED.enrolled_at`

	selectBaselineSQL = `SELECT avg_hold_ms, wpm, backspace_count, sample_count, enrolled_at
FROM behavior_baselines WHERE user_id = $1`
)

// PostgresRepository stores baselines in the behavior_baselines table.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a baseline repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the baseline for userID.
func (r *PostgresRepository) Save(ctx context.Context, userID string, b domain.Baseline) error {
	_, err := r.db.ExecContext(ctx, upsertBaselineSQL,
		userID, b.AvgHoldMs, b.WPM, b.BackspaceCount, b.SampleCount, b.EnrolledAt.UTC())
	return err
}

// Load returns the baseline for userID, or nil if not found.
func (r *PostgresRepository) Load(ctx context.Context, userID string) (*domain.Baseline, error) {
	var b domain.Baseline
	err := r.db.QueryRowContext(ctx, selectBaselineSQL, userID).
		Scan(&b.AvgHoldMs, &b.WPM, &b.BackspaceCount, &b.SampleCount, &b.EnrolledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.EnrolledAt = b.EnrolledAt.UTC()
	return &b, nil
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
