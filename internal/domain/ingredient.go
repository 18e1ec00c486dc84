package domain

import "time"

// Safety and comedogenic rating bounds for ingredients.
const (
	SafetyRatingMin      = 1
	SafetyRatingMax      = 5
	ComedogenicRatingMin = 0
	ComedogenicRatingMax = 5
)

// Ingredient is a canonical cosmetic ingredient keyed by INCI name.
// Rows are created once by the matcher and read-only afterwards.
type Ingredient struct {
	ID          int64   `db:"id"           json:"id"`
	INCIName    string  `db:"inci_name"    json:"inci_name"`
	CommonName  *string `db:"common_name"  json:"common_name,omitempty"`
	Function    *string `db:"function"     json:"function,omitempty"`
	IsActive    bool    `db:"is_active"    json:"is_active"`
	IsFragrance bool    `db:"is_fragrance" json:"is_fragrance"`

	SafetyRating      *int `db:"safety_rating"      json:"safety_rating,omitempty"`
	ComedogenicRating *int `db:"comedogenic_rating" json:"comedogenic_rating,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductIngredientLink connects a product to an ingredient. Position is
// the 1-based INCI concentration order and must never be re-sorted.
type ProductIngredientLink struct {
	ProductID    int64 `db:"product_id"    json:"product_id"`
	IngredientID int64 `db:"ingredient_id" json:"ingredient_id"`
	Position     int   `db:"position"      json:"position"`
}
