package ingredient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// Match type constants for Resolve results.
const (
	MatchExact   = "exact"
	MatchFuzzy   = "fuzzy"
	MatchCreated = "created"
)

// canonicalAliases maps common synonyms and INCI variants to a canonical
// name. Hits count as fuzzy matches.
var canonicalAliases = map[string]string{
	"water":                       "Aqua",
	"eau":                         "Aqua",
	"purified water":              "Aqua",
	"fragrance":                   "Parfum",
	"perfume":                     "Parfum",
	"vitamin e":                   "Tocopherol",
	"vitamin c":                   "Ascorbic Acid",
	"vitamin b3":                  "Niacinamide",
	"vitamin b5":                  "Panthenol",
	"provitamin b5":               "Panthenol",
	"hyaluronic acid":             "Sodium Hyaluronate",
	"centella":                    "Centella Asiatica Extract",
	"cica":                        "Centella Asiatica Extract",
	"green tea extract":           "Camellia Sinensis Leaf Extract",
	"licorice root extract":       "Glycyrrhiza Glabra Root Extract",
	"snail mucin":                 "Snail Secretion Filtrate",
	"titanium dioxide (ci 77891)": "Titanium Dioxide",
}

// Store is the backing-store surface the matcher needs.
type Store interface {
	All(ctx context.Context) ([]*domain.Ingredient, error)
	GetByINCI(ctx context.Context, inciName string) (*domain.Ingredient, error)
	GetByAlias(ctx context.Context, alias string) (*domain.Ingredient, error)
	Insert(ctx context.Context, ing *domain.Ingredient) (int64, error)
}

// Enricher fetches model metadata for new ingredients.
type Enricher interface {
	Enrich(ctx context.Context, inciName string) (*extract.IngredientEnrichment, extract.Usage, error)
}

// Matcher resolves candidate names to canonical ingredient ids. The
// in-memory cache is scoped to one pipeline invocation; construct a fresh
// matcher per run.
type Matcher struct {
	store    Store
	enricher Enricher
	tracker  *extract.CostTracker
	logger   logger.Logger

	mu     sync.Mutex
	cache  map[string]int64
	warmed bool
}

// NewMatcher creates a matcher with an empty cache.
func NewMatcher(store Store, enricher Enricher, tracker *extract.CostTracker, log logger.Logger) *Matcher {
	return &Matcher{
		store:    store,
		enricher: enricher,
		tracker:  tracker,
		logger:   log,
		cache:    make(map[string]int64),
	}
}

// Warm loads the full ingredient table into the cache. Called once at the
// start of a run; Resolve warms lazily if it was skipped.
func (m *Matcher) Warm(ctx context.Context) error {
	ingredients, err := m.store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm ingredient cache: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ing := range ingredients {
		m.cache[cacheKey(ing.INCIName)] = ing.ID
	}
	m.warmed = true

	m.logger.Debug("ingredient cache warmed", logger.Int("ingredients", len(ingredients)))
	return nil
}

// Resolve maps a candidate name to an ingredient id. Resolution layers:
// cache, alias canonicalization, direct store lookup, then creation with
// model enrichment. Creation races on the unique INCI constraint are
// settled by re-reading the winner's row.
func (m *Matcher) Resolve(ctx context.Context, name string) (int64, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, "", errors.New("empty ingredient name")
	}

	if err := m.ensureWarm(ctx); err != nil {
		return 0, "", err
	}

	if id, ok := m.cacheGet(name); ok {
		return id, MatchExact, nil
	}

	canonical, hasAlias := canonicalAliases[strings.ToLower(name)]
	if hasAlias {
		if id, ok := m.cacheGet(canonical); ok {
			m.cachePut(name, id)
			return id, MatchFuzzy, nil
		}
	}

	// Direct store lookups cover cache staleness and the alias table
	// rows the fixed map doesn't know about.
	if ing, err := m.store.GetByINCI(ctx, name); err == nil {
		m.cachePut(name, ing.ID)
		return ing.ID, MatchExact, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return 0, "", err
	}

	if ing, err := m.store.GetByAlias(ctx, name); err == nil {
		m.cachePut(name, ing.ID)
		return ing.ID, MatchFuzzy, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return 0, "", err
	}

	insertName := name
	if hasAlias {
		insertName = canonical
	}

	id, err := m.create(ctx, insertName)
	if err != nil {
		return 0, "", err
	}

	m.cachePut(name, id)
	m.cachePut(insertName, id)
	return id, MatchCreated, nil
}

// create inserts a new ingredient, enriched via the model when possible
// and minimally otherwise.
func (m *Matcher) create(ctx context.Context, inciName string) (int64, error) {
	ing := &domain.Ingredient{INCIName: inciName}

	enrichment, usage, err := m.enricher.Enrich(ctx, inciName)
	m.tracker.Record(usage)
	if err != nil {
		m.logger.Warn("ingredient enrichment failed, inserting minimal row",
			logger.String("inci_name", inciName),
			logger.Error(err),
		)
	} else {
		ing.CommonName = enrichment.CommonName
		ing.Function = enrichment.Function
		ing.IsActive = enrichment.IsActive
		ing.IsFragrance = enrichment.IsFragrance
		ing.SafetyRating = clamp(enrichment.SafetyRating, domain.SafetyRatingMin, domain.SafetyRatingMax)
		ing.ComedogenicRating = clamp(enrichment.ComedogenicRating, domain.ComedogenicRatingMin, domain.ComedogenicRatingMax)
	}

	id, insertErr := m.store.Insert(ctx, ing)
	if insertErr != nil {
		if database.IsUniqueViolation(insertErr) {
			existing, readErr := m.store.GetByINCI(ctx, inciName)
			if readErr != nil {
				return 0, fmt.Errorf("failed to re-read ingredient after insert race: %w", readErr)
			}
			return existing.ID, nil
		}
		return 0, insertErr
	}

	return id, nil
}

func (m *Matcher) ensureWarm(ctx context.Context) error {
	m.mu.Lock()
	warmed := m.warmed
	m.mu.Unlock()
	if warmed {
		return nil
	}
	return m.Warm(ctx)
}

func (m *Matcher) cacheGet(name string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.cache[cacheKey(name)]
	return id, ok
}

func (m *Matcher) cachePut(name string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey(name)] = id
}

func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// clamp bounds a rating into [min, max], passing nil through.
func clamp(v *int, min, max int) *int {
	if v == nil {
		return nil
	}
	clamped := *v
	if clamped < min {
		clamped = min
	}
	if clamped > max {
		clamped = max
	}
	return &clamped
}
