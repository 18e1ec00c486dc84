package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// StagingWriter stages scraped records.
type StagingWriter interface {
	Upsert(ctx context.Context, rec *domain.StagingRecord) (bool, error)
}

// ScrapeResult summarizes one scrape run.
type ScrapeResult struct {
	RunID   string `json:"run_id"`
	Listed  int    `json:"listed"`
	Staged  int    `json:"staged"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Scraper drives a catalog adapter's list+detail flow into staging.
type Scraper struct {
	staging StagingWriter
	runs    RunStore
	logger  logger.Logger
}

// NewScraper creates a scraper.
func NewScraper(staging StagingWriter, runs RunStore, log logger.Logger) *Scraper {
	return &Scraper{staging: staging, runs: runs, logger: log}
}

// Scrape lists the given category pages and stages each detail record.
// Per-listing failures are counted and logged, never fatal; intake is
// idempotent on (source, source_id).
func (s *Scraper) Scrape(ctx context.Context, adapter sources.SourceAdapter, categoryID string, pages int) (*ScrapeResult, error) {
	run := &domain.PipelineRun{
		ID:      uuid.NewString(),
		Source:  adapter.Name(),
		RunType: domain.RunTypeScrape,
		Status:  domain.RunStatusRunning,
		Metadata: domain.JSONMap{
			"category": categoryID,
			"pages":    pages,
		},
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	result := &ScrapeResult{RunID: run.ID}

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			s.closeRun(ctx, run, result, err)
			return result, err
		}

		listings, err := adapter.ListCategory(ctx, categoryID, page)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("page %d: %v", page, err))
			result.Failed++
			continue
		}
		if len(listings) == 0 {
			// Past the last page.
			break
		}
		result.Listed += len(listings)

		s.stageListings(ctx, adapter, listings, run, result)
	}

	s.closeRun(ctx, run, result, nil)

	s.logger.Info("scrape run finished",
		logger.String("run_id", run.ID),
		logger.String("source", adapter.Name()),
		logger.Int("listed", result.Listed),
		logger.Int("staged", result.Staged),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
	)

	return result, nil
}

// stageListings fetches and stages each listing's detail record.
func (s *Scraper) stageListings(ctx context.Context, adapter sources.SourceAdapter, listings []sources.Listing, run *domain.PipelineRun, result *ScrapeResult) {
	for _, listing := range listings {
		if ctx.Err() != nil {
			return
		}

		rec, err := adapter.FetchDetail(ctx, listing)
		if err != nil {
			result.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", listing.URL, err))
			s.logger.Warn("detail fetch failed",
				logger.String("url", listing.URL),
				logger.Error(err),
			)
			continue
		}

		inserted, err := s.staging.Upsert(ctx, rec)
		switch {
		case err != nil:
			result.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", listing.URL, err))
		case inserted:
			result.Staged++
		default:
			result.Skipped++
		}
	}
}

// closeRun finishes the run record with final counters.
func (s *Scraper) closeRun(ctx context.Context, run *domain.PipelineRun, result *ScrapeResult, cause error) {
	run.Status = domain.RunStatusCompleted
	if cause != nil {
		run.Status = domain.RunStatusFailed
		run.Errors = append(run.Errors, cause.Error())
	}
	run.ScrapedCount = result.Staged
	run.DuplicateCount = result.Skipped
	run.FailedCount = result.Failed

	// The run record must close even when the run itself was canceled.
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to finish run record",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
}
