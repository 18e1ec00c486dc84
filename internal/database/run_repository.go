package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// runSelectColumns lists columns for SELECT queries on pipeline_runs.
const runSelectColumns = `id, source, run_type, status, scraped_count, processed_count,
	failed_count, duplicate_count, estimated_cost_usd, metadata, errors,
	started_at, finished_at`

// RunRepository handles database operations for pipeline runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run in running status.
func (r *RunRepository) Create(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (id, source, run_type, status, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.Source, run.RunType, run.Status, run.Metadata, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	return nil
}

// Finish writes the final counters, cost, and errors for a run and stamps
// finished_at.
func (r *RunRepository) Finish(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1,
			scraped_count = $2,
			processed_count = $3,
			failed_count = $4,
			duplicate_count = $5,
			estimated_cost_usd = $6,
			metadata = $7,
			errors = $8,
			finished_at = NOW()
		WHERE id = $9
	`

	result, execErr := r.db.ExecContext(
		ctx, query,
		run.Status, run.ScrapedCount, run.ProcessedCount, run.FailedCount,
		run.DuplicateCount, run.EstimatedCostUSD, run.Metadata, run.Errors, run.ID,
	)
	return execRequireRows(result, execErr, fmt.Errorf("pipeline run not found: %s", run.ID))
}

// Get returns a run by ID. Returns ErrNotFound if absent.
func (r *RunRepository) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	query := `SELECT ` + runSelectColumns + ` FROM pipeline_runs WHERE id = $1`

	var run domain.PipelineRun
	err := r.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}

	return &run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	query := `
		SELECT ` + runSelectColumns + `
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	var runs []*domain.PipelineRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.PipelineRun{}
	}
	return runs, nil
}
