package sources

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// priceRe matches the first number with optional thousands separators and
// decimals in a price string like "₩18,000" or "US$ 21.99".
var priceRe = regexp.MustCompile(`[\d]{1,3}(?:,\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?`)

// parsePrice extracts the first numeric value from a price string.
// Returns nil when no number is present.
func parsePrice(text string) *float64 {
	match := priceRe.FindString(text)
	if match == "" {
		return nil
	}
	match = strings.ReplaceAll(match, ",", "")
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

// cleanText collapses whitespace runs and trims a scraped text fragment.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText returns the cleaned text of the first selector that yields a
// non-empty result. This is the primary layer of the extraction strategy;
// callers fall back to JSON-LD and then regex when it comes up empty.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first selector that yields
// a non-empty value.
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := doc.Find(sel).First().Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
	}
	return ""
}

// jsonLDProduct is the subset of a schema.org Product block the adapters
// care about. Fields vary wildly across retailers, so everything is
// decoded leniently.
type jsonLDProduct struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       json.RawMessage `json:"image"`
	Brand       json.RawMessage `json:"brand"`
	Offers      json.RawMessage `json:"offers"`
}

// jsonLDOffer is a schema.org Offer with its price fields left raw since
// retailers emit them as numbers or strings interchangeably.
type jsonLDOffer struct {
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
	Availability  string          `json:"availability"`
}

// findJSONLDProduct scans the document's ld+json script blocks for the
// first schema.org Product and returns it. Returns nil when none parse.
func findJSONLDProduct(doc *goquery.Document) *jsonLDProduct {
	var found *jsonLDProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		if p := decodeJSONLDProduct(raw); p != nil {
			found = p
			return false
		}
		return true
	})
	return found
}

// decodeJSONLDProduct decodes one ld+json block, handling both a single
// object and a top-level array of objects.
func decodeJSONLDProduct(raw string) *jsonLDProduct {
	var single jsonLDProduct
	if err := json.Unmarshal([]byte(raw), &single); err == nil && strings.EqualFold(single.Type, "Product") {
		return &single
	}

	var list []jsonLDProduct
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		for i := range list {
			if strings.EqualFold(list[i].Type, "Product") {
				return &list[i]
			}
		}
	}

	return nil
}

// BrandName extracts the brand name, which retailers emit as either a
// plain string or a nested Brand object.
func (p *jsonLDProduct) BrandName() string {
	if len(p.Brand) == 0 {
		return ""
	}

	var name string
	if err := json.Unmarshal(p.Brand, &name); err == nil {
		return cleanText(name)
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(p.Brand, &obj); err == nil {
		return cleanText(obj.Name)
	}

	return ""
}

// ImageURL extracts the first image URL from a string or string array.
func (p *jsonLDProduct) ImageURL() string {
	if len(p.Image) == 0 {
		return ""
	}

	var url string
	if err := json.Unmarshal(p.Image, &url); err == nil {
		return strings.TrimSpace(url)
	}

	var urls []string
	if err := json.Unmarshal(p.Image, &urls); err == nil && len(urls) > 0 {
		return strings.TrimSpace(urls[0])
	}

	return ""
}

// Offer extracts the first offer from a single object or an array.
func (p *jsonLDProduct) Offer() *jsonLDOffer {
	if len(p.Offers) == 0 {
		return nil
	}

	var single jsonLDOffer
	if err := json.Unmarshal(p.Offers, &single); err == nil && len(single.Price) > 0 {
		return &single
	}

	var list []jsonLDOffer
	if err := json.Unmarshal(p.Offers, &list); err == nil && len(list) > 0 {
		return &list[0]
	}

	return nil
}

// PriceValue parses the offer's price, tolerating both JSON numbers and
// numeric strings.
func (o *jsonLDOffer) PriceValue() *float64 {
	if o == nil || len(o.Price) == 0 {
		return nil
	}

	var num float64
	if err := json.Unmarshal(o.Price, &num); err == nil {
		return &num
	}

	var str string
	if err := json.Unmarshal(o.Price, &str); err == nil {
		return parsePrice(str)
	}

	return nil
}

// InStock reports whether the offer's availability indicates stock.
// Missing availability is treated as in stock.
func (o *jsonLDOffer) InStock() bool {
	if o == nil || o.Availability == "" {
		return true
	}
	return !strings.Contains(strings.ToLower(o.Availability), "outofstock")
}

// ingredientsRe finds an ingredient declaration in raw page text. The
// final extraction layer for pages whose markup defeats the selectors.
// {20,4000} split into chained repeats: Go's regexp caps repeat counts at 1000.
var ingredientsRe = regexp.MustCompile(`(?is)ingredients?\s*[:：]\s*([^<]{20,1000}[^<]{0,1000}[^<]{0,1000}[^<]{0,1000})`)

// findIngredientsInText pattern-matches an INCI declaration out of raw
// page text. Returns "" when nothing plausible is found.
func findIngredientsInText(text string) string {
	m := ingredientsRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	candidate := cleanText(m[1])
	// A real INCI list is comma-separated; a sentence is not.
	if strings.Count(candidate, ",") < 2 {
		return ""
	}
	return candidate
}
