package domain

import "time"

// StagingRecord status constants.
const (
	StagingStatusPending    = "pending"
	StagingStatusProcessing = "processing"
	StagingStatusProcessed  = "processed"
	StagingStatusDuplicate  = "duplicate"
	StagingStatusFailed     = "failed"
)

// StagingRecord is a raw scraped product held in the staging buffer until
// the batch processor normalizes it into the catalog.
type StagingRecord struct {
	// Identity
	ID       int64  `db:"id"        json:"id"`
	Source   string `db:"source"    json:"source"`
	SourceID string `db:"source_id" json:"source_id"`
	URL      string `db:"url"       json:"url"`

	// Free-text fields as scraped; nothing here is trusted or normalized.
	Name           string  `db:"name"            json:"name"`
	Brand          string  `db:"brand"           json:"brand"`
	CategoryLabel  *string `db:"category_label"  json:"category_label,omitempty"`
	Description    *string `db:"description"     json:"description,omitempty"`
	RawIngredients *string `db:"raw_ingredients" json:"raw_ingredients,omitempty"`
	PriceKRW       *string `db:"price_krw"       json:"price_krw,omitempty"`
	PriceUSD       *string `db:"price_usd"       json:"price_usd,omitempty"`
	ImageURL       *string `db:"image_url"       json:"image_url,omitempty"`
	Volume         *string `db:"volume"          json:"volume,omitempty"`
	Rating         *string `db:"rating"          json:"rating,omitempty"`
	ReviewCount    *string `db:"review_count"    json:"review_count,omitempty"`

	// Processing state
	Status    string  `db:"status"     json:"status"`
	Error     *string `db:"error"      json:"error,omitempty"`
	ProductID *int64  `db:"product_id" json:"product_id,omitempty"`

	ScrapedAt time.Time `db:"scraped_at" json:"scraped_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
