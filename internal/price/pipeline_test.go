package price_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/price"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

type fakeCatalog struct {
	products []*domain.Product
	stale    []*domain.Product
}

func (c *fakeCatalog) All(_ context.Context) ([]*domain.Product, error) {
	return c.products, nil
}

func (c *fakeCatalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

func (c *fakeCatalog) ListForPricing(_ context.Context, _ int64, _ time.Time, limit int) ([]*domain.Product, error) {
	if len(c.stale) > limit {
		return c.stale[:limit], nil
	}
	return c.stale, nil
}

type fakeRetailers struct {
	id int64
}

func (r *fakeRetailers) Ensure(_ context.Context, _ string) (int64, error) {
	return r.id, nil
}

// searchAdapter is a price-only adapter returning canned search results
// keyed by product name.
type searchAdapter struct {
	name      string
	results   map[string][]sources.PriceCandidate
	searchErr map[string]error
}

func (a *searchAdapter) Name() string { return a.name }

func (a *searchAdapter) ListCategory(_ context.Context, _ string, _ int) ([]sources.Listing, error) {
	return nil, sources.ErrNotSupported
}

func (a *searchAdapter) FetchDetail(_ context.Context, _ sources.Listing) (*domain.StagingRecord, error) {
	return nil, sources.ErrNotSupported
}

func (a *searchAdapter) SearchProduct(_ context.Context, _, name string) ([]sources.PriceCandidate, error) {
	if err := a.searchErr[name]; err != nil {
		return nil, err
	}
	return a.results[name], nil
}

type fakeRuns struct {
	created  []*domain.PipelineRun
	finished []*domain.PipelineRun
}

func (r *fakeRuns) Create(_ context.Context, run *domain.PipelineRun) error {
	r.created = append(r.created, run)
	return nil
}

func (r *fakeRuns) Finish(_ context.Context, run *domain.PipelineRun) error {
	r.finished = append(r.finished, run)
	return nil
}

func newPipeline(catalog *fakeCatalog, store *fakePriceStore) *price.Pipeline {
	return newPipelineWithRuns(catalog, store, &fakeRuns{})
}

func newPipelineWithRuns(catalog *fakeCatalog, store *fakePriceStore, runs *fakeRuns) *price.Pipeline {
	return price.NewPipeline(
		catalog,
		&fakeRetailers{id: 5},
		price.NewUpserter(store, logger.NewNop()),
		runs,
		0.5,
		24*time.Hour,
		logger.NewNop(),
	)
}

func TestPipeline_Run_PricesMatchedProducts(t *testing.T) {
	essence := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	catalog := &fakeCatalog{products: []*domain.Product{essence}, stale: []*domain.Product{essence}}
	store := newFakePriceStore()

	adapter := &searchAdapter{
		name: "yesstyle",
		results: map[string][]sources.PriceCandidate{
			essence.Name: {candidate("COSRX", "Advanced Snail 96 Mucin Power Essence")},
		},
	}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Searched != 1 || result.Priced != 1 || result.Missed != 0 {
		t.Errorf("result = %+v, expected one priced product", result)
	}
	if _, ok := store.current[[2]int64{1, 5}]; !ok {
		t.Error("no current price stored for (product 1, retailer 5)")
	}
	if len(store.history) != 1 {
		t.Errorf("history entries = %d, expected 1", len(store.history))
	}
}

func TestPipeline_Run_ForceAssociatesConfidentTopHit(t *testing.T) {
	// The search result matches a sibling product line, not the searched
	// one, so direct reconciliation fails and the top hit is forced.
	searched := product(2, "COSRX", "Advanced Snail 92 All In One Cream")
	sibling := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	catalog := &fakeCatalog{
		products: []*domain.Product{sibling, searched},
		stale:    []*domain.Product{searched},
	}
	store := newFakePriceStore()

	adapter := &searchAdapter{
		name: "yesstyle",
		results: map[string][]sources.PriceCandidate{
			searched.Name: {candidate("COSRX", "Advanced Snail 96 Mucin Power Essence")},
		},
	}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Priced != 1 {
		t.Fatalf("result = %+v, expected forced association to price", result)
	}
	if _, ok := store.current[[2]int64{2, 5}]; !ok {
		t.Error("forced price not attributed to the searched product")
	}
}

func TestPipeline_Run_EmptySearchIsMissed(t *testing.T) {
	essence := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	catalog := &fakeCatalog{products: []*domain.Product{essence}, stale: []*domain.Product{essence}}
	store := newFakePriceStore()

	adapter := &searchAdapter{name: "stylevana", results: map[string][]sources.PriceCandidate{}}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Missed != 1 || result.Priced != 0 || result.Failed != 0 {
		t.Errorf("result = %+v, expected one miss", result)
	}
}

func TestPipeline_Run_SearchFailureIsIsolated(t *testing.T) {
	broken := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	healthy := product(2, "COSRX", "Advanced Snail 92 All In One Cream")
	catalog := &fakeCatalog{
		products: []*domain.Product{broken, healthy},
		stale:    []*domain.Product{broken, healthy},
	}
	store := newFakePriceStore()

	adapter := &searchAdapter{
		name: "yesstyle",
		results: map[string][]sources.PriceCandidate{
			healthy.Name: {candidate("COSRX", "Advanced Snail 92 All In One Cream")},
		},
		searchErr: map[string]error{broken.Name: errors.New("fetch timeout")},
	}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Failed != 1 || result.Priced != 1 {
		t.Errorf("result = %+v, expected one failure and one priced", result)
	}
}

func TestPipeline_Run_ExplicitIDsWinOverStaleness(t *testing.T) {
	essence := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	cream := product(2, "COSRX", "Advanced Snail 92 All In One Cream")
	catalog := &fakeCatalog{
		products: []*domain.Product{essence, cream},
		stale:    []*domain.Product{essence, cream},
	}
	store := newFakePriceStore()

	adapter := &searchAdapter{
		name: "yesstyle",
		results: map[string][]sources.PriceCandidate{
			cream.Name: {candidate("COSRX", "Advanced Snail 92 All In One Cream")},
		},
	}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{IDs: []int64{2}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Searched != 1 {
		t.Errorf("searched = %d, expected only the explicit id", result.Searched)
	}
	if _, ok := store.current[[2]int64{2, 5}]; !ok {
		t.Error("explicit product not priced")
	}
}

func TestPipeline_Run_RecordsRun(t *testing.T) {
	priced := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	broken := product(2, "COSRX", "Advanced Snail 92 All In One Cream")
	catalog := &fakeCatalog{
		products: []*domain.Product{priced, broken},
		stale:    []*domain.Product{priced, broken},
	}
	store := newFakePriceStore()
	runs := &fakeRuns{}

	adapter := &searchAdapter{
		name: "yesstyle",
		results: map[string][]sources.PriceCandidate{
			priced.Name: {candidate("COSRX", "Advanced Snail 96 Mucin Power Essence")},
		},
		searchErr: map[string]error{broken.Name: errors.New("fetch timeout")},
	}

	result, err := newPipelineWithRuns(catalog, store, runs).Run(context.Background(), adapter, price.Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(runs.created) != 1 || len(runs.finished) != 1 {
		t.Fatalf("runs created = %d, finished = %d, expected one of each", len(runs.created), len(runs.finished))
	}

	run := runs.finished[0]
	if run.ID != result.RunID {
		t.Errorf("run id = %s, result run id = %s", run.ID, result.RunID)
	}
	if run.RunType != domain.RunTypePrices || run.Source != "yesstyle" {
		t.Errorf("run type/source = %s/%s, expected prices/yesstyle", run.RunType, run.Source)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, expected completed", run.Status)
	}
	if run.ProcessedCount != 1 || run.FailedCount != 1 {
		t.Errorf("run counters = %d processed, %d failed, expected 1 and 1", run.ProcessedCount, run.FailedCount)
	}
	if len(run.Errors) != 1 {
		t.Errorf("run errors = %d, expected the search failure recorded", len(run.Errors))
	}
	if run.Metadata["searched"] != 2 {
		t.Errorf("run metadata searched = %v, expected 2", run.Metadata["searched"])
	}
}

func TestPipeline_Run_BrandFilter(t *testing.T) {
	essence := product(1, "COSRX", "Advanced Snail 96 Mucin Power Essence")
	sun := product(2, "Beauty of Joseon", "Relief Sun Rice Probiotics")
	catalog := &fakeCatalog{
		products: []*domain.Product{essence, sun},
		stale:    []*domain.Product{essence, sun},
	}
	store := newFakePriceStore()

	adapter := &searchAdapter{name: "yesstyle", results: map[string][]sources.PriceCandidate{}}

	result, err := newPipeline(catalog, store).Run(context.Background(), adapter, price.Options{Brand: "beauty of joseon", Limit: 10})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Searched != 1 {
		t.Errorf("searched = %d, expected the brand filter to select one product", result.Searched)
	}
}
