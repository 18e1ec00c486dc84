package domain

import (
	"strings"
	"time"
)

// Product category constants. The category column is constrained to this
// closed set; extraction output outside it falls back to CategoryOther.
const (
	CategoryCleanser    = "cleanser"
	CategoryToner       = "toner"
	CategoryEssence     = "essence"
	CategorySerum       = "serum"
	CategoryAmpoule     = "ampoule"
	CategoryMoisturizer = "moisturizer"
	CategorySunscreen   = "sunscreen"
	CategoryMask        = "mask"
	CategoryExfoliant   = "exfoliant"
	CategoryEyeCream    = "eye_cream"
	CategoryLipCare     = "lip_care"
	CategoryMist        = "mist"
	CategoryOther       = "other"
)

// DefaultShelfLifeMonths is applied when extraction returns no shelf life.
const DefaultShelfLifeMonths = 36

// validCategories is the closed category set.
var validCategories = map[string]bool{
	CategoryCleanser:    true,
	CategoryToner:       true,
	CategoryEssence:     true,
	CategorySerum:       true,
	CategoryAmpoule:     true,
	CategoryMoisturizer: true,
	CategorySunscreen:   true,
	CategoryMask:        true,
	CategoryExfoliant:   true,
	CategoryEyeCream:    true,
	CategoryLipCare:     true,
	CategoryMist:        true,
	CategoryOther:       true,
}

// NormalizeCategory lowercases and validates a category value, returning
// CategoryOther for anything outside the closed set.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	c = strings.ReplaceAll(c, " ", "_")
	if validCategories[c] {
		return c
	}
	return CategoryOther
}

// Product is a canonical catalog entry. Rows are immutable after insert
// except through explicit re-verification, which is outside this pipeline.
type Product struct {
	ID          int64   `db:"id"          json:"id"`
	Name        string  `db:"name"        json:"name"`
	NameKo      *string `db:"name_ko"     json:"name_ko,omitempty"`
	Brand       string  `db:"brand"       json:"brand"`
	BrandKo     *string `db:"brand_ko"    json:"brand_ko,omitempty"`
	Category    string  `db:"category"    json:"category"`
	Subcategory *string `db:"subcategory" json:"subcategory,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	VolumeML    *float64 `db:"volume_ml"    json:"volume_ml,omitempty"`
	PriceKRW    *float64 `db:"price_krw"    json:"price_krw,omitempty"`
	PriceUSD    *float64 `db:"price_usd"    json:"price_usd,omitempty"`
	Rating      *float64 `db:"rating"       json:"rating,omitempty"`
	ReviewCount *int     `db:"review_count" json:"review_count,omitempty"`

	ShelfLifeMonths *int `db:"shelf_life_months" json:"shelf_life_months,omitempty"`
	PAOMonths       *int `db:"pao_months"        json:"pao_months,omitempty"`

	Verified       bool    `db:"verified"        json:"verified"`
	RawIngredients *string `db:"raw_ingredients" json:"raw_ingredients,omitempty"`

	// Sunscreen attributes; non-nil only when Category == sunscreen.
	SPF             *int    `db:"spf"              json:"spf,omitempty"`
	PARating        *string `db:"pa_rating"        json:"pa_rating,omitempty"`
	SunscreenType   *string `db:"sunscreen_type"   json:"sunscreen_type,omitempty"`
	SunscreenFinish *string `db:"sunscreen_finish" json:"sunscreen_finish,omitempty"`
	WaterResistant  *bool   `db:"water_resistant"  json:"water_resistant,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
