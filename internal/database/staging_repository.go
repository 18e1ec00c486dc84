package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// stagingSelectColumns lists columns for SELECT queries on staging_products.
const stagingSelectColumns = `id, source, source_id, url, name, brand, category_label,
	description, raw_ingredients, price_krw, price_usd, image_url, volume,
	rating, review_count, status, error, product_id, scraped_at, created_at, updated_at`

// StagingRepository handles database operations for the staging buffer.
type StagingRepository struct {
	db *sqlx.DB
}

// NewStagingRepository creates a new staging repository.
func NewStagingRepository(db *sqlx.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

// Upsert inserts a scraped record into staging. A record with the same
// (source, source_id) already present is left untouched and reported as
// not inserted, so re-scrapes never clobber in-flight rows.
func (r *StagingRepository) Upsert(ctx context.Context, rec *domain.StagingRecord) (bool, error) {
	query := `
		INSERT INTO staging_products (
			source, source_id, url, name, brand, category_label, description,
			raw_ingredients, price_krw, price_usd, image_url, volume, rating,
			review_count, status, scraped_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (source, source_id) DO NOTHING
	`

	result, err := r.db.ExecContext(
		ctx, query,
		rec.Source, rec.SourceID, rec.URL, rec.Name, rec.Brand,
		rec.CategoryLabel, rec.Description, rec.RawIngredients,
		rec.PriceKRW, rec.PriceUSD, rec.ImageURL, rec.Volume,
		rec.Rating, rec.ReviewCount, domain.StagingStatusPending, rec.ScrapedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert staging record: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return false, fmt.Errorf("failed to read upsert result: %w", affectedErr)
	}

	return n > 0, nil
}

// ClaimPending atomically selects up to limit pending records and flips
// them to processing, so concurrent processors never claim the same rows.
// An empty source claims across all sources. Records without raw
// ingredients are skipped; they cannot be extracted and stay pending
// until a re-scrape fills them in.
func (r *StagingRepository) ClaimPending(ctx context.Context, source string, limit int) ([]*domain.StagingRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	records, selectErr := claimSelect(ctx, tx, source, limit)
	if selectErr != nil {
		return nil, selectErr
	}

	if len(records) == 0 {
		return []*domain.StagingRecord{}, nil
	}

	if updateErr := claimUpdateStatus(ctx, tx, records); updateErr != nil {
		return nil, updateErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	for _, rec := range records {
		rec.Status = domain.StagingStatusProcessing
	}
	return records, nil
}

// claimSelect selects and locks claimable staging rows within a transaction.
func claimSelect(ctx context.Context, tx *sqlx.Tx, source string, limit int) ([]*domain.StagingRecord, error) {
	query := `
		SELECT ` + stagingSelectColumns + `
		FROM staging_products
		WHERE status = 'pending'
		  AND raw_ingredients IS NOT NULL
		  AND ($1 = '' OR source = $1)
		ORDER BY scraped_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	var records []*domain.StagingRecord
	if err := tx.SelectContext(ctx, &records, query, source, limit); err != nil {
		return nil, fmt.Errorf("failed to select claimable staging records: %w", err)
	}

	return records, nil
}

// claimUpdateStatus flips claimed rows to processing within a transaction.
func claimUpdateStatus(ctx context.Context, tx *sqlx.Tx, records []*domain.StagingRecord) error {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	query := `UPDATE staging_products SET status = 'processing', updated_at = NOW() WHERE id = ANY($1)`

	if _, err := tx.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to update claimed staging records: %w", err)
	}

	return nil
}

// MarkProcessed marks a staging record as processed and links it to the
// catalog product it produced.
func (r *StagingRepository) MarkProcessed(ctx context.Context, id, productID int64) error {
	query := `
		UPDATE staging_products
		SET status = 'processed', product_id = $1, error = NULL, updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, productID, id)
	return execRequireRows(result, execErr, fmt.Errorf("staging record not found: %d", id))
}

// MarkDuplicate marks a staging record as a duplicate of an existing
// catalog product.
func (r *StagingRepository) MarkDuplicate(ctx context.Context, id, productID int64) error {
	query := `
		UPDATE staging_products
		SET status = 'duplicate', product_id = $1, error = NULL, updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, productID, id)
	return execRequireRows(result, execErr, fmt.Errorf("staging record not found: %d", id))
}

// MarkFailed marks a staging record as failed with the error message.
func (r *StagingRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE staging_products
		SET status = 'failed', error = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, errMsg, id)
	return execRequireRows(result, execErr, fmt.Errorf("staging record not found: %d", id))
}

// ResetFailed flips failed records back to pending for reprocessing.
// An empty source resets across all sources. Returns the number of
// records reset.
func (r *StagingRepository) ResetFailed(ctx context.Context, source string) (int64, error) {
	query := `
		UPDATE staging_products
		SET status = 'pending', error = NULL, updated_at = NOW()
		WHERE status = 'failed'
		  AND ($1 = '' OR source = $1)
	`

	result, err := r.db.ExecContext(ctx, query, source)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed staging records: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to read reset result: %w", affectedErr)
	}

	return n, nil
}

// StagingStats contains aggregate counts by status for the staging buffer.
type StagingStats struct {
	TotalPending    int `json:"total_pending"`
	TotalProcessing int `json:"total_processing"`
	TotalProcessed  int `json:"total_processed"`
	TotalDuplicate  int `json:"total_duplicate"`
	TotalFailed     int `json:"total_failed"`
}

// Stats returns aggregate counts of staging records grouped by status.
// An empty source aggregates across all sources.
func (r *StagingRepository) Stats(ctx context.Context, source string) (*StagingStats, error) {
	query := `
		SELECT status, COUNT(*)
		FROM staging_products
		WHERE ($1 = '' OR source = $1)
		GROUP BY status
	`

	rows, err := r.db.QueryxContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query staging stats: %w", err)
	}
	defer rows.Close()

	stats := &StagingStats{}
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan staging stats row: %w", scanErr)
		}
		assignStagingStat(stats, status, count)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate staging stats: %w", rowsErr)
	}

	return stats, nil
}

func assignStagingStat(stats *StagingStats, status string, count int) {
	switch status {
	case domain.StagingStatusPending:
		stats.TotalPending = count
	case domain.StagingStatusProcessing:
		stats.TotalProcessing = count
	case domain.StagingStatusProcessed:
		stats.TotalProcessed = count
	case domain.StagingStatusDuplicate:
		stats.TotalDuplicate = count
	case domain.StagingStatusFailed:
		stats.TotalFailed = count
	}
}
