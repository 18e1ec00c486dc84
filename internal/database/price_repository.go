package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// RetailerRepository handles database operations for retailers.
type RetailerRepository struct {
	db *sqlx.DB
}

// NewRetailerRepository creates a new retailer repository.
func NewRetailerRepository(db *sqlx.DB) *RetailerRepository {
	return &RetailerRepository{db: db}
}

// Ensure upserts a retailer by name and returns its ID.
func (r *RetailerRepository) Ensure(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO retailers (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure retailer: %w", err)
	}

	return id, nil
}

// List returns all retailers ordered by name.
func (r *RetailerRepository) List(ctx context.Context) ([]*domain.Retailer, error) {
	query := `SELECT id, name FROM retailers ORDER BY name ASC`

	var retailers []*domain.Retailer
	if err := r.db.SelectContext(ctx, &retailers, query); err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}

	if retailers == nil {
		retailers = []*domain.Retailer{}
	}
	return retailers, nil
}

// PriceRepository handles database operations for current prices and the
// append-only price history.
type PriceRepository struct {
	db *sqlx.DB
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db *sqlx.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// GetCurrent returns the current price row for a (product, retailer) pair.
// Returns ErrNotFound if the pair has never been priced.
func (r *PriceRepository) GetCurrent(ctx context.Context, productID, retailerID int64) (*domain.ProductPrice, error) {
	query := `
		SELECT id, product_id, retailer_id, price_krw, price_usd, url, in_stock, checked_at
		FROM product_prices
		WHERE product_id = $1 AND retailer_id = $2
	`

	var price domain.ProductPrice
	err := r.db.GetContext(ctx, &price, query, productID, retailerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get current price: %w", err)
	}

	return &price, nil
}

// Upsert writes the current price for a (product, retailer) pair,
// overwriting any previous row for the pair. Concurrent writers for the
// same pair serialize on the conflict update; the last write wins.
func (r *PriceRepository) Upsert(ctx context.Context, price *domain.ProductPrice) error {
	query := `
		INSERT INTO product_prices (product_id, retailer_id, price_krw, price_usd, url, in_stock, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, retailer_id) DO UPDATE SET
			price_krw = EXCLUDED.price_krw,
			price_usd = EXCLUDED.price_usd,
			url = EXCLUDED.url,
			in_stock = EXCLUDED.in_stock,
			checked_at = EXCLUDED.checked_at
	`

	_, err := r.db.ExecContext(
		ctx, query,
		price.ProductID, price.RetailerID, price.PriceKRW, price.PriceUSD,
		price.URL, price.InStock, price.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}

	return nil
}

// InsertHistory appends a price snapshot to the history table.
func (r *PriceRepository) InsertHistory(ctx context.Context, entry *domain.PriceHistoryEntry) error {
	query := `
		INSERT INTO price_history (product_id, retailer, price, currency, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		entry.ProductID, entry.Retailer, entry.Price, entry.Currency, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert price history: %w", err)
	}

	return nil
}

// History returns the most recent price snapshots for a product.
func (r *PriceRepository) History(ctx context.Context, productID int64, limit int) ([]*domain.PriceHistoryEntry, error) {
	query := `
		SELECT id, product_id, retailer, price, currency, recorded_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	var entries []*domain.PriceHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, productID, limit); err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}

	if entries == nil {
		entries = []*domain.PriceHistoryEntry{}
	}
	return entries, nil
}
