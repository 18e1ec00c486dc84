package ingredient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/ingredient"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

type fakeProducts struct {
	unlinked []*domain.Product
	links    *fakeLinks
}

func (p *fakeProducts) ListUnlinked(_ context.Context, limit int) ([]*domain.Product, error) {
	if len(p.unlinked) > limit {
		return p.unlinked[:limit], nil
	}
	return p.unlinked, nil
}

func (p *fakeProducts) CountUnlinked(_ context.Context) (int, error) {
	count := 0
	for _, prod := range p.unlinked {
		if prod.RawIngredients == nil {
			continue
		}
		if p.links != nil && p.links.existing[prod.ID] {
			continue
		}
		count++
	}
	return count, nil
}

type fakeLinks struct {
	existing map[int64]bool
	written  map[int64][]domain.ProductIngredientLink
	writeErr map[int64]error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{
		existing: make(map[int64]bool),
		written:  make(map[int64][]domain.ProductIngredientLink),
		writeErr: make(map[int64]error),
	}
}

func (l *fakeLinks) HasLinks(_ context.Context, productID int64) (bool, error) {
	return l.existing[productID], nil
}

func (l *fakeLinks) ReplaceLinks(_ context.Context, productID int64, links []domain.ProductIngredientLink) error {
	if err := l.writeErr[productID]; err != nil {
		return err
	}
	l.existing[productID] = true
	l.written[productID] = links
	return nil
}

// fakeResolver assigns ids by name, marking unknown names as created.
type fakeResolver struct {
	known map[string]int64
	errOn string
	next  int64
}

func (r *fakeResolver) Resolve(_ context.Context, name string) (int64, string, error) {
	if name == r.errOn {
		return 0, "", errors.New("resolution failed")
	}
	if id, ok := r.known[name]; ok {
		return id, ingredient.MatchExact, nil
	}
	if r.known == nil {
		r.known = make(map[string]int64)
	}
	r.next++
	id := r.next + 1000
	r.known[name] = id
	return id, ingredient.MatchCreated, nil
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

func unlinkedProduct(id int64, rawIngredients string) *domain.Product {
	return &domain.Product{ID: id, Name: "Essence", Brand: "COSRX", RawIngredients: &rawIngredients}
}

func TestLinker_LinkBatch_LinksAndCounts(t *testing.T) {
	products := &fakeProducts{unlinked: []*domain.Product{
		unlinkedProduct(1, "Water, Glycerin, Niacinamide"),
	}}
	links := newFakeLinks()
	resolver := &fakeResolver{known: map[string]int64{"Water": 10, "Glycerin": 11}}
	linker := ingredient.NewLinker(products, links, resolver, &fakeRuns{}, logger.NewNop())

	result, err := linker.LinkBatch(context.Background(), 50, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}

	if result.Linked != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, expected one linked product", result)
	}
	if result.Matched != 2 || result.Created != 1 {
		t.Errorf("result = %+v, expected 2 matched and 1 created", result)
	}

	written := links.written[1]
	if len(written) != 3 {
		t.Fatalf("wrote %d links, expected 3", len(written))
	}
	for i, link := range written {
		if link.Position != i+1 {
			t.Errorf("link %d position = %d, expected %d", i, link.Position, i+1)
		}
	}
}

func TestLinker_LinkBatch_SecondRunIsNoOp(t *testing.T) {
	products := &fakeProducts{unlinked: []*domain.Product{
		unlinkedProduct(1, "Water, Glycerin"),
	}}
	links := newFakeLinks()
	resolver := &fakeResolver{}
	linker := ingredient.NewLinker(products, links, resolver, &fakeRuns{}, logger.NewNop())

	ctx := context.Background()
	if _, err := linker.LinkBatch(ctx, 50, extract.NewCostTracker()); err != nil {
		t.Fatalf("first LinkBatch() error = %v", err)
	}

	// The product would still be listed if another linker raced the
	// listing; the existence guard must skip it.
	result, err := linker.LinkBatch(ctx, 50, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("second LinkBatch() error = %v", err)
	}
	if result.Linked != 0 || result.Skipped != 1 {
		t.Errorf("second run result = %+v, expected skip", result)
	}
}

func TestLinker_LinkBatch_DuplicateIngredientKeepsFirstPosition(t *testing.T) {
	products := &fakeProducts{unlinked: []*domain.Product{
		unlinkedProduct(1, "Water, Glycerin, Aqua"),
	}}
	links := newFakeLinks()
	// Water and Aqua resolve to the same row.
	resolver := &fakeResolver{known: map[string]int64{"Water": 10, "Glycerin": 11, "Aqua": 10}}
	linker := ingredient.NewLinker(products, links, resolver, &fakeRuns{}, logger.NewNop())

	if _, err := linker.LinkBatch(context.Background(), 50, extract.NewCostTracker()); err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}

	written := links.written[1]
	if len(written) != 2 {
		t.Fatalf("wrote %d links, expected 2 after dedup", len(written))
	}
	if written[0].IngredientID != 10 || written[0].Position != 1 {
		t.Errorf("first link = %+v, expected ingredient 10 at position 1", written[0])
	}
}

func TestLinker_LinkBatch_FailuresAreIsolated(t *testing.T) {
	products := &fakeProducts{unlinked: []*domain.Product{
		unlinkedProduct(1, "Water, Brokenium"),
		unlinkedProduct(2, "Glycerin"),
	}}
	links := newFakeLinks()
	resolver := &fakeResolver{errOn: "Brokenium"}
	linker := ingredient.NewLinker(products, links, resolver, &fakeRuns{}, logger.NewNop())

	result, err := linker.LinkBatch(context.Background(), 50, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}

	if result.Failed != 1 || result.Linked != 1 {
		t.Errorf("result = %+v, expected one failure and one link", result)
	}
	if _, ok := links.written[1]; ok {
		t.Error("failed product has links written")
	}
	if _, ok := links.written[2]; !ok {
		t.Error("healthy product missing links")
	}
}

func TestLinker_LinkBatch_SkipsProductsWithoutIngredients(t *testing.T) {
	products := &fakeProducts{unlinked: []*domain.Product{
		{ID: 1, Name: "Mystery Cream", Brand: "COSRX"},
	}}
	links := newFakeLinks()
	linker := ingredient.NewLinker(products, links, &fakeResolver{}, &fakeRuns{}, logger.NewNop())

	result, err := linker.LinkBatch(context.Background(), 50, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}
	if result.Skipped != 1 || result.Linked != 0 {
		t.Errorf("result = %+v, expected skip for nil ingredients", result)
	}
}

func TestLinker_LinkBatch_ReportsRemaining(t *testing.T) {
	links := newFakeLinks()
	products := &fakeProducts{
		unlinked: []*domain.Product{
			unlinkedProduct(1, "Water"),
			unlinkedProduct(2, "Glycerin"),
			unlinkedProduct(3, "Niacinamide"),
		},
		links: links,
	}
	linker := ingredient.NewLinker(products, links, &fakeResolver{}, &fakeRuns{}, logger.NewNop())

	result, err := linker.LinkBatch(context.Background(), 2, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}

	if result.Linked != 2 {
		t.Fatalf("linked = %d, expected the limit of 2", result.Linked)
	}
	if result.Remaining != 1 {
		t.Errorf("remaining = %d, expected 1 product beyond the batch", result.Remaining)
	}
}

func TestLinker_LinkBatch_RecordsRun(t *testing.T) {
	links := newFakeLinks()
	products := &fakeProducts{
		unlinked: []*domain.Product{
			unlinkedProduct(1, "Water, Brokenium"),
			unlinkedProduct(2, "Glycerin"),
		},
		links: links,
	}
	runs := &fakeRuns{}
	resolver := &fakeResolver{errOn: "Brokenium"}
	linker := ingredient.NewLinker(products, links, resolver, runs, logger.NewNop())

	result, err := linker.LinkBatch(context.Background(), 50, extract.NewCostTracker())
	if err != nil {
		t.Fatalf("LinkBatch() error = %v", err)
	}

	if len(runs.created) != 1 || len(runs.finished) != 1 {
		t.Fatalf("runs created = %d, finished = %d, expected one of each", len(runs.created), len(runs.finished))
	}

	run := runs.finished[0]
	if run.ID != result.RunID {
		t.Errorf("run id = %s, result run id = %s", run.ID, result.RunID)
	}
	if run.RunType != domain.RunTypeLink {
		t.Errorf("run type = %s, expected %s", run.RunType, domain.RunTypeLink)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, expected completed", run.Status)
	}
	if run.ProcessedCount != 1 || run.FailedCount != 1 {
		t.Errorf("run counters = %d processed, %d failed, expected 1 and 1", run.ProcessedCount, run.FailedCount)
	}
	if len(run.Errors) != 1 {
		t.Errorf("run errors = %d, expected the resolution failure recorded", len(run.Errors))
	}
	if run.Metadata["remaining"] != 1 {
		t.Errorf("run metadata remaining = %v, expected 1", run.Metadata["remaining"])
	}
}
