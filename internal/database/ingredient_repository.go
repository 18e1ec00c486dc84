package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// ingredientSelectColumns lists columns for SELECT queries on ingredients
// (aliased as i where joined).
const ingredientSelectColumns = `i.id, i.inci_name, i.common_name, i.function,
	i.is_active, i.is_fragrance, i.safety_rating, i.comedogenic_rating, i.created_at`

// IngredientRepository handles database operations for ingredients and
// their aliases.
type IngredientRepository struct {
	db *sqlx.DB
}

// NewIngredientRepository creates a new ingredient repository.
func NewIngredientRepository(db *sqlx.DB) *IngredientRepository {
	return &IngredientRepository{db: db}
}

// All returns the full ingredient table, used to warm per-run caches.
func (r *IngredientRepository) All(ctx context.Context) ([]*domain.Ingredient, error) {
	query := `
		SELECT ` + ingredientSelectColumns + `
		FROM ingredients i
		ORDER BY i.id ASC
	`

	var ingredients []*domain.Ingredient
	if err := r.db.SelectContext(ctx, &ingredients, query); err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}

	if ingredients == nil {
		ingredients = []*domain.Ingredient{}
	}
	return ingredients, nil
}

// GetByINCI returns the ingredient with the given INCI name, compared
// case-insensitively. Returns ErrNotFound if absent.
func (r *IngredientRepository) GetByINCI(ctx context.Context, inciName string) (*domain.Ingredient, error) {
	query := `
		SELECT ` + ingredientSelectColumns + `
		FROM ingredients i
		WHERE LOWER(i.inci_name) = LOWER($1)
		LIMIT 1
	`

	var ing domain.Ingredient
	err := r.db.GetContext(ctx, &ing, query, inciName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient by INCI name: %w", err)
	}

	return &ing, nil
}

// GetByAlias returns the ingredient a marketing or trade-name alias points
// to. Returns ErrNotFound if the alias is unknown.
func (r *IngredientRepository) GetByAlias(ctx context.Context, alias string) (*domain.Ingredient, error) {
	query := `
		SELECT ` + ingredientSelectColumns + `
		FROM ingredients i
		JOIN ingredient_aliases a ON a.ingredient_id = i.id
		WHERE LOWER(a.alias) = LOWER($1)
		LIMIT 1
	`

	var ing domain.Ingredient
	err := r.db.GetContext(ctx, &ing, query, alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingredient by alias: %w", err)
	}

	return &ing, nil
}

// Insert adds a new ingredient and returns its ID. A unique violation on
// inci_name surfaces unwrapped pq errors, so callers that race can detect
// it with IsUniqueViolation and re-read.
func (r *IngredientRepository) Insert(ctx context.Context, ing *domain.Ingredient) (int64, error) {
	query := `
		INSERT INTO ingredients (
			inci_name, common_name, function, is_active, is_fragrance,
			safety_rating, comedogenic_rating
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, query,
		ing.INCIName, ing.CommonName, ing.Function, ing.IsActive, ing.IsFragrance,
		ing.SafetyRating, ing.ComedogenicRating,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to insert ingredient: %w", err)
	}

	return id, nil
}

// LinkRepository handles database operations for product-ingredient links.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// HasLinks reports whether a product already has ingredient links.
func (r *LinkRepository) HasLinks(ctx context.Context, productID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM product_ingredients WHERE product_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, productID); err != nil {
		return false, fmt.Errorf("failed to check product links: %w", err)
	}

	return exists, nil
}

// ReplaceLinks atomically replaces a product's ingredient links with the
// given set, preserving INCI positions.
func (r *LinkRepository) ReplaceLinks(ctx context.Context, productID int64, links []domain.ProductIngredientLink) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	deleteQuery := `DELETE FROM product_ingredients WHERE product_id = $1`
	if _, delErr := tx.ExecContext(ctx, deleteQuery, productID); delErr != nil {
		return fmt.Errorf("failed to clear product links: %w", delErr)
	}

	insertQuery := `
		INSERT INTO product_ingredients (product_id, ingredient_id, position)
		VALUES ($1, $2, $3)
	`
	for _, link := range links {
		if _, insErr := tx.ExecContext(ctx, insertQuery, link.ProductID, link.IngredientID, link.Position); insErr != nil {
			return fmt.Errorf("failed to insert product link: %w", insErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit link transaction: %w", commitErr)
	}

	return nil
}
