package domain

import "time"

// Retailer is static reference data for a price source.
type Retailer struct {
	ID   int64  `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

// ProductPrice is the current price for a (product, retailer) pair.
// The row is overwritten in place when the retailer is re-checked.
type ProductPrice struct {
	ID         int64  `db:"id"          json:"id"`
	ProductID  int64  `db:"product_id"  json:"product_id"`
	RetailerID int64  `db:"retailer_id" json:"retailer_id"`

	PriceKRW *float64 `db:"price_krw" json:"price_krw,omitempty"`
	PriceUSD *float64 `db:"price_usd" json:"price_usd,omitempty"`

	URL       string    `db:"url"        json:"url"`
	InStock   bool      `db:"in_stock"   json:"in_stock"`
	CheckedAt time.Time `db:"checked_at" json:"checked_at"`
}

// PriceHistoryEntry is an append-only price snapshot, recorded on first
// insert and whenever the price moves by more than one cent.
type PriceHistoryEntry struct {
	ID         int64     `db:"id"          json:"id"`
	ProductID  int64     `db:"product_id"  json:"product_id"`
	Retailer   string    `db:"retailer"    json:"retailer"`
	Price      float64   `db:"price"       json:"price"`
	Currency   string    `db:"currency"    json:"currency"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
