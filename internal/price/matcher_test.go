package price_test

import (
	"testing"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/price"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

func product(id int64, brand, name string) *domain.Product {
	return &domain.Product{ID: id, Brand: brand, Name: name}
}

func candidate(brand, name string) sources.PriceCandidate {
	usd := 12.99
	return sources.PriceCandidate{
		Brand:    brand,
		Name:     name,
		PriceUSD: &usd,
		URL:      "https://example.com/p",
		InStock:  true,
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence"),
		product(2, "COSRX", "Advanced Snail 92 All In One Cream"),
	}, 0.5)

	match := matcher.Match(candidate("COSRX", "Advanced Snail 96 Mucin Power Essence"))
	if match == nil {
		t.Fatal("Match() = nil, expected exact match")
	}
	if match.Product.ID != 1 {
		t.Errorf("matched product %d, expected 1", match.Product.ID)
	}
	if match.Confidence != 1.0 || match.Method != price.MethodExact {
		t.Errorf("match = (%.2f, %s), expected (1.00, exact)", match.Confidence, match.Method)
	}
}

func TestMatcher_ExactIgnoresFormatting(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence"),
	}, 0.5)

	match := matcher.Match(candidate("cosrx", "ADVANCED SNAIL 96 MUCIN POWER ESSENCE (100ml)"))
	if match == nil || match.Method != price.MethodExact {
		t.Fatalf("Match() = %+v, expected exact match despite case and parenthetical", match)
	}
}

func TestMatcher_BrandBucketTokenSet(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "Beauty of Joseon", "Relief Sun Rice Probiotics SPF50+ PA++++"),
		product(2, "Beauty of Joseon", "Glow Serum Propolis Niacinamide"),
	}, 0.5)

	match := matcher.Match(candidate("Beauty of Joseon", "Relief Sun Rice + Probiotics SPF 50"))
	if match == nil {
		t.Fatal("Match() = nil, expected fuzzy match")
	}
	if match.Product.ID != 1 || match.Method != price.MethodFuzzy {
		t.Errorf("match = (product %d, %s), expected (1, fuzzy)", match.Product.ID, match.Method)
	}
	if match.Confidence >= 1.0 || match.Confidence < 0.5 {
		t.Errorf("confidence = %.2f, expected in [0.5, 1.0)", match.Confidence)
	}
}

func TestMatcher_ContainmentFloor(t *testing.T) {
	// The candidate title buries the product name in marketing copy, so
	// raw token overlap alone scores low.
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Snail Mucin Essence"),
	}, 0.5)

	match := matcher.Match(candidate("COSRX", "Snail Mucin Essence Korean Skincare Hydrating Repair Serum For All Skin Types"))
	if match == nil {
		t.Fatal("Match() = nil, expected containment match")
	}
	if match.Confidence < 0.8 {
		t.Errorf("confidence = %.2f, expected containment floor of 0.8", match.Confidence)
	}
}

func TestMatcher_BelowMinConfidenceDiscarded(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence"),
	}, 0.5)

	if match := matcher.Match(candidate("COSRX", "Oil Free Ultra Moisturizing Lotion")); match != nil {
		t.Errorf("Match() = %+v, expected nil below minimum confidence", match)
	}
}

func TestMatcher_CrossCatalogWhenBrandUnknown(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence"),
	}, 0.5)

	// Retailer listings sometimes omit the brand field entirely.
	match := matcher.Match(candidate("", "Advanced Snail 96 Mucin Power Essence"))
	if match == nil {
		t.Fatal("Match() = nil, expected cross-catalog match")
	}
	if match.Product.ID != 1 || match.Method != price.MethodFuzzy {
		t.Errorf("match = (product %d, %s), expected (1, fuzzy)", match.Product.ID, match.Method)
	}
}

func TestMatcher_ResellerBrandSuffix(t *testing.T) {
	matcher := price.NewMatcher([]*domain.Product{
		product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence"),
	}, 0.5)

	match := matcher.Match(candidate("COSRX Official", "Advanced Snail 96 Mucin Power Essence 100ml"))
	if match == nil || match.Product.ID != 1 {
		t.Fatalf("Match() = %+v, expected brand-bucket match for reseller storefront", match)
	}
}

func TestMatcher_EmptyCatalog(t *testing.T) {
	matcher := price.NewMatcher(nil, 0.5)

	if match := matcher.Match(candidate("COSRX", "Anything")); match != nil {
		t.Errorf("Match() = %+v, expected nil on empty catalog", match)
	}
}
