package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/inventariate/backend-go/internal/repository/sqldb"
)

// Repository handles database operations for pipeline tracking
type Repository struct {
	db *sqldb.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sqldb.DB) *Repository {
	return &Repository{db: db}
}

// RecordRun inserts the log entry of a finished run.
func (r *Repository) RecordRun(ctx context.Context, run *PipelineRun) error {
	query := r.db.Rebind(`
		INSERT INTO pipeline_runs (
			session_key, file_name, status, total_rows,
			error_message, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(
		ctx, query,
		run.SessionKey, run.FileName, string(run.Status), run.TotalRows,
		run.ErrorMessage, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by session key. It returns nil, nil when absent.
func (r *Repository) GetRun(ctx context.Context, sessionKey string) (*PipelineRun, error) {
	query := r.db.Rebind(`
		SELECT id, session_key, file_name, status, total_rows,
		       error_message, started_at, completed_at
		FROM pipeline_runs
		WHERE session_key = ?
	`)

	run := &PipelineRun{}
	err := r.db.GetContext(ctx, run, query, sessionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(`
		SELECT id, session_key, file_name, status, total_rows,
		       error_message, started_at, completed_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?
	`)

	runs := make([]PipelineRun, 0)
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	return runs, nil
}
