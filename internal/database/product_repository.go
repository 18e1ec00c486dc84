package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// productSelectColumns lists columns for SELECT queries on products.
const productSelectColumns = `id, name, name_ko, brand, brand_ko, category, subcategory,
	description, volume_ml, price_krw, price_usd, rating, review_count,
	shelf_life_months, pao_months, verified, raw_ingredients,
	spf, pa_rating, sunscreen_type, sunscreen_finish, water_resistant,
	created_at, updated_at`

// ProductRepository handles database operations for the product catalog.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Insert adds a product to the catalog and returns its ID.
func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) (int64, error) {
	query := `
		INSERT INTO products (
			name, name_ko, brand, brand_ko, category, subcategory, description,
			volume_ml, price_krw, price_usd, rating, review_count,
			shelf_life_months, pao_months, verified, raw_ingredients,
			spf, pa_rating, sunscreen_type, sunscreen_finish, water_resistant
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, query,
		p.Name, p.NameKo, p.Brand, p.BrandKo, p.Category, p.Subcategory, p.Description,
		p.VolumeML, p.PriceKRW, p.PriceUSD, p.Rating, p.ReviewCount,
		p.ShelfLifeMonths, p.PAOMonths, p.Verified, p.RawIngredients,
		p.SPF, p.PARating, p.SunscreenType, p.SunscreenFinish, p.WaterResistant,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}

	return id, nil
}

// GetByID returns a product by ID. Returns ErrNotFound if absent.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productSelectColumns + ` FROM products WHERE id = $1`

	var p domain.Product
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// FindDuplicate returns the existing catalog product with the same brand
// and name, compared case-insensitively. Returns ErrNotFound if no
// duplicate exists.
func (r *ProductRepository) FindDuplicate(ctx context.Context, brand, name string) (*domain.Product, error) {
	query := `
		SELECT ` + productSelectColumns + `
		FROM products
		WHERE LOWER(brand) = LOWER($1) AND LOWER(name) = LOWER($2)
		LIMIT 1
	`

	var p domain.Product
	err := r.db.GetContext(ctx, &p, query, brand, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find duplicate product: %w", err)
	}

	return &p, nil
}

// ListUnlinked returns products that carry a raw ingredient list but have
// no ingredient links yet, oldest first.
func (r *ProductRepository) ListUnlinked(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productSelectColumns + `
		FROM products p
		WHERE p.raw_ingredients IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM product_ingredients pi WHERE pi.product_id = p.id
		  )
		ORDER BY p.id ASC
		LIMIT $1
	`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unlinked products: %w", err)
	}

	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

// CountUnlinked returns how many products still await ingredient links.
func (r *ProductRepository) CountUnlinked(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM products p
		WHERE p.raw_ingredients IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM product_ingredients pi WHERE pi.product_id = p.id
		  )
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count unlinked products: %w", err)
	}
	return count, nil
}

// All returns the full catalog, used to build per-run matcher indexes.
func (r *ProductRepository) All(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productSelectColumns + ` FROM products ORDER BY id ASC`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

// ListForPricing returns products with no price from the given retailer
// since the cutoff, best-rated first.
func (r *ProductRepository) ListForPricing(ctx context.Context, retailerID int64, cutoff time.Time, limit int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productSelectColumns + `
		FROM products p
		WHERE NOT EXISTS (
			SELECT 1 FROM product_prices pp
			WHERE pp.product_id = p.id
			  AND pp.retailer_id = $1
			  AND pp.checked_at > $2
		)
		ORDER BY p.rating DESC NULLS LAST, p.id ASC
		LIMIT $3
	`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query, retailerID, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list products for pricing: %w", err)
	}

	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}
