// Package price fuzzy-matches scraped retailer prices to catalog products
// and maintains the current-price and history tables.
package price

import (
	"regexp"
	"strings"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// Match method constants.
const (
	MethodExact  = "exact"
	MethodFuzzy  = "fuzzy"
	MethodForced = "forced"
)

// containmentFloor is the minimum confidence granted when one normalized
// name contains the other.
const containmentFloor = 0.8

// Match is a scraped candidate resolved to a catalog product.
type Match struct {
	Product    *domain.Product
	Candidate  sources.PriceCandidate
	Confidence float64
	Method     string
}

// catalogEntry is a product with its normalized matching keys precomputed.
type catalogEntry struct {
	product   *domain.Product
	normName  string
	normBrand string
	tokens    map[string]bool
}

// Matcher matches candidates against an in-memory catalog index built
// once per run.
type Matcher struct {
	entries       []catalogEntry
	minConfidence float64
}

// NewMatcher builds a matcher over the given catalog.
func NewMatcher(products []*domain.Product, minConfidence float64) *Matcher {
	entries := make([]catalogEntry, 0, len(products))
	for _, p := range products {
		normName := normalize(p.Name)
		entries = append(entries, catalogEntry{
			product:   p,
			normName:  normName,
			normBrand: normalize(p.Brand),
			tokens:    tokenSet(normName),
		})
	}
	return &Matcher{entries: entries, minConfidence: minConfidence}
}

// Match resolves a candidate to the best catalog product, or nil when
// nothing reaches the minimum confidence. Tiers: exact normalized
// equality, brand-bucketed token-set scoring, then cross-catalog scoring.
func (m *Matcher) Match(candidate sources.PriceCandidate) *Match {
	candName := normalize(candidate.Name)
	candBrand := normalize(candidate.Brand)
	candTokens := tokenSet(candName)

	if match := m.matchExact(candidate, candName, candBrand); match != nil {
		return match
	}
	if match := m.matchBrandBucket(candidate, candName, candBrand, candTokens); match != nil {
		return match
	}
	return m.matchCrossCatalog(candidate, candName, candTokens)
}

func (m *Matcher) matchExact(candidate sources.PriceCandidate, candName, candBrand string) *Match {
	for i := range m.entries {
		e := &m.entries[i]
		if e.normName == candName && e.normBrand == candBrand {
			return &Match{
				Product:    e.product,
				Candidate:  candidate,
				Confidence: 1.0,
				Method:     MethodExact,
			}
		}
	}
	return nil
}

func (m *Matcher) matchBrandBucket(candidate sources.PriceCandidate, candName, candBrand string, candTokens map[string]bool) *Match {
	var best *Match
	for i := range m.entries {
		e := &m.entries[i]
		if !brandsEqual(e.normBrand, candBrand) {
			continue
		}

		score := tokenSetSimilarity(e.tokens, candTokens)
		if nameContains(e.normName, candName) && score < containmentFloor {
			score = containmentFloor
		}

		if score >= m.minConfidence && (best == nil || score > best.Confidence) {
			best = &Match{
				Product:    e.product,
				Candidate:  candidate,
				Confidence: score,
				Method:     MethodFuzzy,
			}
		}
	}
	return best
}

func (m *Matcher) matchCrossCatalog(candidate sources.PriceCandidate, candName string, candTokens map[string]bool) *Match {
	var best *Match
	for i := range m.entries {
		e := &m.entries[i]
		score := tokenSetSimilarity(e.tokens, candTokens)
		if score >= m.minConfidence && (best == nil || score > best.Confidence) {
			best = &Match{
				Product:    e.product,
				Candidate:  candidate,
				Confidence: score,
				Method:     MethodFuzzy,
			}
		}
	}
	return best
}

// brandsEqual treats brands as equal when normalized strings match or one
// contains the other ("cosrx" vs "cosrx official").
func brandsEqual(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

func nameContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9\s]`)
)

// normalize lowercases, strips parentheticals and symbols, and collapses
// whitespace so formatting differences never defeat a match.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = parentheticalRe.ReplaceAllString(s, " ")
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// tokenSet builds the word-token set of a normalized string.
func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		tokens[tok] = true
	}
	return tokens
}

// tokenSetSimilarity is intersection over union of word tokens.
func tokenSetSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
