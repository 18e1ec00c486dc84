package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// systemPrompt is the fixed instruction for product normalization. The
// category list must stay in sync with the catalog's closed enum.
const systemPrompt = `You are a K-beauty product data normalizer. Given raw scraped product
fields, respond with exactly one JSON object and nothing else, using these keys:
name, name_ko, brand, brand_ko, category, subcategory, description,
volume_ml, price_krw, price_usd, rating, review_count, shelf_life_months,
pao_months, spf, pa_rating, sunscreen_type, sunscreen_finish, water_resistant.
category must be one of: cleanser, toner, essence, serum, ampoule,
moisturizer, sunscreen, mask, exfoliant, eye_cream, lip_care, mist, other.
Use null for any field you cannot determine. Numeric fields must be numbers.
spf, pa_rating, sunscreen_type, sunscreen_finish and water_resistant apply
only to sunscreens.`

// Extractor normalizes staged records through the language model.
type Extractor struct {
	llm    Client
	logger logger.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(llm Client, log logger.Logger) *Extractor {
	return &Extractor{llm: llm, logger: log}
}

// Extract normalizes one raw record into a catalog product. Model output
// is never trusted: every field is coerced and defaulted individually, so
// a sloppy response degrades fields rather than failing the row.
func (e *Extractor) Extract(ctx context.Context, rec *domain.StagingRecord) (*domain.Product, Usage, error) {
	response, usage, err := e.llm.Complete(ctx, systemPrompt, buildPrompt(rec))
	if err != nil {
		return nil, usage, fmt.Errorf("extraction call failed: %w", err)
	}

	payload, err := parseModelJSON(response)
	if err != nil {
		return nil, usage, fmt.Errorf("extraction response unparseable: %w", err)
	}

	product := e.coerceProduct(payload, rec)
	return product, usage, nil
}

// buildPrompt renders the staged record's fields for the model.
func buildPrompt(rec *domain.StagingRecord) string {
	var b strings.Builder
	b.WriteString("Raw product record:\n")
	writeField(&b, "name", rec.Name)
	writeField(&b, "brand", rec.Brand)
	writeOptField(&b, "category_label", rec.CategoryLabel)
	writeOptField(&b, "description", rec.Description)
	writeOptField(&b, "price_krw", rec.PriceKRW)
	writeOptField(&b, "price_usd", rec.PriceUSD)
	writeOptField(&b, "volume", rec.Volume)
	writeOptField(&b, "rating", rec.Rating)
	writeOptField(&b, "review_count", rec.ReviewCount)
	return b.String()
}

func writeField(b *strings.Builder, key, val string) {
	if val != "" {
		fmt.Fprintf(b, "%s: %s\n", key, val)
	}
}

func writeOptField(b *strings.Builder, key string, val *string) {
	if val != nil {
		writeField(b, key, *val)
	}
}

// parseModelJSON recovers a JSON object from model output in layers:
// parse as-is, then with Markdown fences stripped, then the outermost
// brace span.
func parseModelJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}

	stripped := stripCodeFences(text)
	if err := json.Unmarshal([]byte(stripped), &payload); err == nil {
		return payload, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil {
			return payload, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in %d bytes of output", len(text))
}

// stripCodeFences removes leading/trailing Markdown code fence lines.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// coerceProduct validates the untyped payload field by field. Invalid
// values fall back to nil or a safe default; they are never errors.
func (e *Extractor) coerceProduct(payload map[string]any, rec *domain.StagingRecord) *domain.Product {
	p := &domain.Product{
		Name:           stringOr(payload["name"], rec.Name),
		Brand:          stringOr(payload["brand"], rec.Brand),
		NameKo:         coerceString(payload["name_ko"]),
		BrandKo:        coerceString(payload["brand_ko"]),
		Subcategory:    coerceString(payload["subcategory"]),
		Description:    coerceString(payload["description"]),
		VolumeML:       coerceFloat(payload["volume_ml"]),
		PriceKRW:       coerceFloat(payload["price_krw"]),
		PriceUSD:       coerceFloat(payload["price_usd"]),
		Rating:         coerceFloat(payload["rating"]),
		ReviewCount:    coerceInt(payload["review_count"]),
		PAOMonths:      coerceInt(payload["pao_months"]),
		RawIngredients: rec.RawIngredients,
	}

	category := ""
	if c := coerceString(payload["category"]); c != nil {
		category = *c
	}
	p.Category = domain.NormalizeCategory(category)
	if category != "" && p.Category == domain.CategoryOther && !strings.EqualFold(category, domain.CategoryOther) {
		e.logger.Debug("category fell back to other", logger.String("raw", category))
	}

	p.ShelfLifeMonths = coerceInt(payload["shelf_life_months"])
	if p.ShelfLifeMonths == nil {
		months := domain.DefaultShelfLifeMonths
		p.ShelfLifeMonths = &months
	}

	if p.Category == domain.CategorySunscreen {
		p.SPF = coerceInt(payload["spf"])
		p.PARating = coerceString(payload["pa_rating"])
		p.SunscreenType = coerceString(payload["sunscreen_type"])
		p.SunscreenFinish = coerceString(payload["sunscreen_finish"])
		p.WaterResistant = coerceBool(payload["water_resistant"])
	}

	return p
}

// stringOr coerces v to a string, falling back when empty.
func stringOr(v any, fallback string) string {
	if s := coerceString(v); s != nil {
		return *s
	}
	return fallback
}

// coerceString accepts a non-empty string; anything else is nil.
func coerceString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// coerceFloat accepts a JSON number or a numeric string.
func coerceFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		n = strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}

// coerceInt accepts a JSON number or numeric string, truncating decimals.
func coerceInt(v any) *int {
	f := coerceFloat(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// coerceBool accepts a JSON bool or the strings "true"/"false".
func coerceBool(v any) *bool {
	switch b := v.(type) {
	case bool:
		return &b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return &parsed
		}
	}
	return nil
}
