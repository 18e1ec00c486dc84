package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/processor"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// fakeStagingWriter tracks staged source ids, treating repeats as skips.
type fakeStagingWriter struct {
	seen      map[string]bool
	upsertErr error
}

func newFakeStagingWriter() *fakeStagingWriter {
	return &fakeStagingWriter{seen: make(map[string]bool)}
}

func (w *fakeStagingWriter) Upsert(_ context.Context, rec *domain.StagingRecord) (bool, error) {
	if w.upsertErr != nil {
		return false, w.upsertErr
	}
	key := rec.Source + "|" + rec.SourceID
	if w.seen[key] {
		return false, nil
	}
	w.seen[key] = true
	return true, nil
}

// catalogAdapter is a catalog-only adapter with canned listing pages.
type catalogAdapter struct {
	name      string
	pages     map[int][]sources.Listing
	listErr   map[int]error
	detailErr map[string]error
}

func (a *catalogAdapter) Name() string { return a.name }

func (a *catalogAdapter) ListCategory(_ context.Context, _ string, page int) ([]sources.Listing, error) {
	if err := a.listErr[page]; err != nil {
		return nil, err
	}
	return a.pages[page], nil
}

func (a *catalogAdapter) FetchDetail(_ context.Context, listing sources.Listing) (*domain.StagingRecord, error) {
	if err := a.detailErr[listing.SourceID]; err != nil {
		return nil, err
	}
	return &domain.StagingRecord{
		Source:    a.name,
		SourceID:  listing.SourceID,
		URL:       listing.URL,
		Name:      listing.Name,
		Brand:     listing.Brand,
		Status:    domain.StagingStatusPending,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

func (a *catalogAdapter) SearchProduct(_ context.Context, _, _ string) ([]sources.PriceCandidate, error) {
	return nil, sources.ErrNotSupported
}

func listing(id string) sources.Listing {
	return sources.Listing{
		SourceID: id,
		URL:      "https://global.oliveyoung.com/product/detail?prdtNo=" + id,
		Name:     "Product " + id,
		Brand:    "COSRX",
	}
}

func TestScraper_Scrape_StagesListings(t *testing.T) {
	adapter := &catalogAdapter{
		name: "oliveyoung",
		pages: map[int][]sources.Listing{
			1: {listing("A1"), listing("A2")},
			2: {listing("A3")},
		},
	}
	staging := newFakeStagingWriter()
	runs := &fakeRuns{}

	result, err := processor.NewScraper(staging, runs, logger.NewNop()).
		Scrape(context.Background(), adapter, "10000010001", 2)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if result.Listed != 3 || result.Staged != 3 || result.Failed != 0 {
		t.Errorf("result = %+v, expected all 3 listings staged", result)
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusCompleted {
		t.Error("run record not closed as completed")
	}
	if runs.finished[0].ScrapedCount != 3 {
		t.Errorf("run scraped count = %d, expected 3", runs.finished[0].ScrapedCount)
	}
}

func TestScraper_Scrape_RepeatRunSkips(t *testing.T) {
	adapter := &catalogAdapter{
		name:  "oliveyoung",
		pages: map[int][]sources.Listing{1: {listing("A1")}},
	}
	staging := newFakeStagingWriter()
	runs := &fakeRuns{}
	scraper := processor.NewScraper(staging, runs, logger.NewNop())

	ctx := context.Background()
	if _, err := scraper.Scrape(ctx, adapter, "cat", 1); err != nil {
		t.Fatalf("first Scrape() error = %v", err)
	}

	result, err := scraper.Scrape(ctx, adapter, "cat", 1)
	if err != nil {
		t.Fatalf("second Scrape() error = %v", err)
	}
	if result.Staged != 0 || result.Skipped != 1 {
		t.Errorf("second run result = %+v, expected skip via idempotent intake", result)
	}
}

func TestScraper_Scrape_StopsAtEmptyPage(t *testing.T) {
	adapter := &catalogAdapter{
		name:  "oliveyoung",
		pages: map[int][]sources.Listing{1: {listing("A1")}},
	}
	staging := newFakeStagingWriter()
	runs := &fakeRuns{}

	result, err := processor.NewScraper(staging, runs, logger.NewNop()).
		Scrape(context.Background(), adapter, "cat", 10)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if result.Listed != 1 {
		t.Errorf("listed = %d, expected pagination to stop after page 1", result.Listed)
	}
}

func TestScraper_Scrape_FailuresAreCountedNotFatal(t *testing.T) {
	adapter := &catalogAdapter{
		name: "oliveyoung",
		pages: map[int][]sources.Listing{
			2: {listing("B1"), listing("B2")},
		},
		listErr:   map[int]error{1: errors.New("listing blocked")},
		detailErr: map[string]error{"B1": errors.New("detail page 500")},
	}
	staging := newFakeStagingWriter()
	runs := &fakeRuns{}

	result, err := processor.NewScraper(staging, runs, logger.NewNop()).
		Scrape(context.Background(), adapter, "cat", 2)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if result.Failed != 2 || result.Staged != 1 {
		t.Errorf("result = %+v, expected 2 failures and 1 staged", result)
	}
	if got := len(runs.finished[0].Errors); got != 2 {
		t.Errorf("run errors = %d, expected page and detail failures recorded", got)
	}
	if runs.finished[0].Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, partial failures must not fail the run", runs.finished[0].Status)
	}
}

func TestScraper_Scrape_CancelledContextClosesRun(t *testing.T) {
	adapter := &catalogAdapter{
		name:  "oliveyoung",
		pages: map[int][]sources.Listing{1: {listing("A1")}},
	}
	staging := newFakeStagingWriter()
	runs := &fakeRuns{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.NewScraper(staging, runs, logger.NewNop()).
		Scrape(ctx, adapter, "cat", 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scrape() error = %v, expected context.Canceled", err)
	}
	if len(runs.finished) != 1 || runs.finished[0].Status != domain.RunStatusFailed {
		t.Error("canceled run record not closed as failed")
	}
}
