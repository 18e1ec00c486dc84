package ingredient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"

	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/ingredient"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// fakeStore is an in-memory ingredient store keyed by lowercase INCI name.
type fakeStore struct {
	rows    map[string]*domain.Ingredient
	aliases map[string]*domain.Ingredient
	nextID  int64

	insertErr     error
	insertRaceRow *domain.Ingredient
	inserts       int
	lastInserted  *domain.Ingredient
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:    make(map[string]*domain.Ingredient),
		aliases: make(map[string]*domain.Ingredient),
		nextID:  1,
	}
}

func (s *fakeStore) All(_ context.Context) ([]*domain.Ingredient, error) {
	all := make([]*domain.Ingredient, 0, len(s.rows))
	for _, ing := range s.rows {
		all = append(all, ing)
	}
	return all, nil
}

func (s *fakeStore) GetByINCI(_ context.Context, inciName string) (*domain.Ingredient, error) {
	if ing, ok := s.rows[lower(inciName)]; ok {
		return ing, nil
	}
	// Simulates another writer winning the insert race.
	if s.insertRaceRow != nil && s.inserts > 0 && lower(s.insertRaceRow.INCIName) == lower(inciName) {
		return s.insertRaceRow, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) GetByAlias(_ context.Context, alias string) (*domain.Ingredient, error) {
	if ing, ok := s.aliases[lower(alias)]; ok {
		return ing, nil
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) Insert(_ context.Context, ing *domain.Ingredient) (int64, error) {
	s.inserts++
	s.lastInserted = ing
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	ing.ID = s.nextID
	s.nextID++
	s.rows[lower(ing.INCIName)] = ing
	return ing.ID, nil
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// fakeEnricher returns canned enrichment metadata.
type fakeEnricher struct {
	enrichment *extract.IngredientEnrichment
	err        error
	calls      int
}

func (e *fakeEnricher) Enrich(_ context.Context, _ string) (*extract.IngredientEnrichment, extract.Usage, error) {
	e.calls++
	if e.err != nil {
		return nil, extract.Usage{}, e.err
	}
	return e.enrichment, extract.Usage{InputTokens: 100, OutputTokens: 50}, nil
}

func newMatcher(store *fakeStore, enricher *fakeEnricher) (*ingredient.Matcher, *extract.CostTracker) {
	tracker := extract.NewCostTracker()
	return ingredient.NewMatcher(store, enricher, tracker, logger.NewNop()), tracker
}

func TestMatcher_Resolve_ExactFromWarmCache(t *testing.T) {
	store := newFakeStore()
	store.rows["aqua"] = &domain.Ingredient{ID: 7, INCIName: "Aqua"}
	matcher, _ := newMatcher(store, &fakeEnricher{})

	ctx := context.Background()
	if err := matcher.Warm(ctx); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	id, matchType, err := matcher.Resolve(ctx, "Aqua")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != 7 || matchType != ingredient.MatchExact {
		t.Errorf("Resolve() = (%d, %s), expected (7, exact)", id, matchType)
	}
}

func TestMatcher_Resolve_AliasCountsAsFuzzy(t *testing.T) {
	store := newFakeStore()
	store.rows["aqua"] = &domain.Ingredient{ID: 7, INCIName: "Aqua"}
	matcher, _ := newMatcher(store, &fakeEnricher{})

	id, matchType, err := matcher.Resolve(context.Background(), "Water")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != 7 || matchType != ingredient.MatchFuzzy {
		t.Errorf("Resolve() = (%d, %s), expected (7, fuzzy)", id, matchType)
	}
}

func TestMatcher_Resolve_AliasTableCountsAsFuzzy(t *testing.T) {
	store := newFakeStore()
	tocopherol := &domain.Ingredient{ID: 3, INCIName: "Tocopherol"}
	store.rows["tocopherol"] = tocopherol
	store.aliases["tocopheryl"] = tocopherol
	matcher, _ := newMatcher(store, &fakeEnricher{})

	id, matchType, err := matcher.Resolve(context.Background(), "Tocopheryl")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != 3 || matchType != ingredient.MatchFuzzy {
		t.Errorf("Resolve() = (%d, %s), expected (3, fuzzy)", id, matchType)
	}
}

func TestMatcher_Resolve_CreatesOnceForVariants(t *testing.T) {
	store := newFakeStore()
	rating := 9
	enricher := &fakeEnricher{enrichment: &extract.IngredientEnrichment{SafetyRating: &rating}}
	matcher, tracker := newMatcher(store, enricher)

	ctx := context.Background()

	id, matchType, err := matcher.Resolve(ctx, "Water")
	if err != nil {
		t.Fatalf("Resolve(Water) error = %v", err)
	}
	if matchType != ingredient.MatchCreated {
		t.Errorf("first Resolve matchType = %s, expected created", matchType)
	}
	if store.lastInserted.INCIName != "Aqua" {
		t.Errorf("inserted INCI name = %q, expected canonical Aqua", store.lastInserted.INCIName)
	}

	// The canonical row is now cached; the variant and the canonical name
	// must both resolve to it without a second insert.
	id2, matchType2, err := matcher.Resolve(ctx, "Aqua")
	if err != nil {
		t.Fatalf("Resolve(Aqua) error = %v", err)
	}
	if id2 != id || matchType2 != ingredient.MatchExact {
		t.Errorf("Resolve(Aqua) = (%d, %s), expected (%d, exact)", id2, matchType2, id)
	}
	if store.inserts != 1 {
		t.Errorf("inserts = %d, expected 1", store.inserts)
	}
	if enricher.calls != 1 {
		t.Errorf("enricher calls = %d, expected 1", enricher.calls)
	}

	summary := tracker.Summary()
	if summary.Calls != 1 || summary.InputTokens != 100 {
		t.Errorf("tracker summary = %+v, expected one recorded call", summary)
	}
}

func TestMatcher_Resolve_InsertRaceReReadsWinner(t *testing.T) {
	store := newFakeStore()
	store.insertErr = &pq.Error{Code: "23505"}
	store.insertRaceRow = &domain.Ingredient{ID: 42, INCIName: "Niacinamide"}
	matcher, _ := newMatcher(store, &fakeEnricher{})

	id, matchType, err := matcher.Resolve(context.Background(), "Niacinamide")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != 42 || matchType != ingredient.MatchCreated {
		t.Errorf("Resolve() = (%d, %s), expected (42, created)", id, matchType)
	}
}

func TestMatcher_Resolve_EnrichmentFailureInsertsMinimalRow(t *testing.T) {
	store := newFakeStore()
	enricher := &fakeEnricher{err: errors.New("model unavailable")}
	matcher, _ := newMatcher(store, enricher)

	id, matchType, err := matcher.Resolve(context.Background(), "Adenosine")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id == 0 || matchType != ingredient.MatchCreated {
		t.Errorf("Resolve() = (%d, %s), expected created row", id, matchType)
	}
	if store.lastInserted.SafetyRating != nil {
		t.Error("minimal row carries a safety rating, expected nil")
	}
}

func TestMatcher_Resolve_ClampsRatings(t *testing.T) {
	store := newFakeStore()
	safety := 99
	comedogenic := -3
	enricher := &fakeEnricher{enrichment: &extract.IngredientEnrichment{
		SafetyRating:      &safety,
		ComedogenicRating: &comedogenic,
	}}
	matcher, _ := newMatcher(store, enricher)

	if _, _, err := matcher.Resolve(context.Background(), "Adenosine"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got := store.lastInserted.SafetyRating; got == nil || *got != domain.SafetyRatingMax {
		t.Errorf("safety rating = %v, expected clamped to %d", got, domain.SafetyRatingMax)
	}
	if got := store.lastInserted.ComedogenicRating; got == nil || *got != domain.ComedogenicRatingMin {
		t.Errorf("comedogenic rating = %v, expected clamped to %d", got, domain.ComedogenicRatingMin)
	}
}

func TestMatcher_Resolve_EmptyName(t *testing.T) {
	matcher, _ := newMatcher(newFakeStore(), &fakeEnricher{})

	if _, _, err := matcher.Resolve(context.Background(), "  "); err == nil {
		t.Error("Resolve() expected error for blank name")
	}
}
