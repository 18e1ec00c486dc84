// Package processor drains the staging buffer: it claims pending records,
// runs extraction, deduplicates, and inserts into the catalog.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// StagingStore is the staging-buffer surface the processor needs.
type StagingStore interface {
	ClaimPending(ctx context.Context, source string, limit int) ([]*domain.StagingRecord, error)
	MarkProcessed(ctx context.Context, id, productID int64) error
	MarkDuplicate(ctx context.Context, id, productID int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ResetFailed(ctx context.Context, source string) (int64, error)
}

// ProductStore is the catalog surface the processor needs.
type ProductStore interface {
	FindDuplicate(ctx context.Context, brand, name string) (*domain.Product, error)
	Insert(ctx context.Context, p *domain.Product) (int64, error)
}

// Extractor normalizes one staged record.
type Extractor interface {
	Extract(ctx context.Context, rec *domain.StagingRecord) (*domain.Product, extract.Usage, error)
}

// RunStore persists pipeline run records.
type RunStore interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	Finish(ctx context.Context, run *domain.PipelineRun) error
}

// itemOutcome is one staged record's terminal result.
type itemOutcome struct {
	status string
	errMsg string
}

// BatchResult summarizes one processing cycle.
type BatchResult struct {
	RunID      string             `json:"run_id"`
	Claimed    int                `json:"claimed"`
	Processed  int                `json:"processed"`
	Duplicates int                `json:"duplicates"`
	Failed     int                `json:"failed"`
	Cost       domain.CostSummary `json:"cost"`
}

// BatchProcessor runs the staging-to-catalog cycle.
type BatchProcessor struct {
	staging   StagingStore
	products  ProductStore
	extractor Extractor
	runs      RunStore
	logger    logger.Logger

	batchSize   int
	concurrency int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(
	staging StagingStore,
	products ProductStore,
	extractor Extractor,
	runs RunStore,
	batchSize, concurrency int,
	log logger.Logger,
) *BatchProcessor {
	return &BatchProcessor{
		staging:     staging,
		products:    products,
		extractor:   extractor,
		runs:        runs,
		logger:      log,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// ProcessBatch claims one batch of pending records and processes it with
// a bounded worker pool. Every record reaches a terminal status
// individually; one failure never blocks its batch-mates.
func (b *BatchProcessor) ProcessBatch(ctx context.Context, source string, tracker *extract.CostTracker) (*BatchResult, error) {
	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		Source:    source,
		RunType:   domain.RunTypeProcess,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := b.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	records, err := b.staging.ClaimPending(ctx, source, b.batchSize)
	if err != nil {
		b.failRun(ctx, run, err)
		return nil, err
	}

	outcomes := b.processAll(ctx, records, tracker)

	result := &BatchResult{RunID: run.ID, Claimed: len(records)}
	for _, outcome := range outcomes {
		switch outcome.status {
		case domain.StagingStatusProcessed:
			result.Processed++
		case domain.StagingStatusDuplicate:
			result.Duplicates++
		case domain.StagingStatusFailed:
			result.Failed++
			run.Errors = append(run.Errors, outcome.errMsg)
		}
	}
	result.Cost = tracker.Summary()

	run.Status = domain.RunStatusCompleted
	run.ProcessedCount = result.Processed
	run.DuplicateCount = result.Duplicates
	run.FailedCount = result.Failed
	run.EstimatedCostUSD = result.Cost.EstimatedCostUSD
	run.Metadata = domain.JSONMap{
		"claimed":       result.Claimed,
		"calls":         result.Cost.Calls,
		"input_tokens":  result.Cost.InputTokens,
		"output_tokens": result.Cost.OutputTokens,
	}
	if finishErr := b.runs.Finish(ctx, run); finishErr != nil {
		b.logger.Error("failed to finish run record",
			logger.String("run_id", run.ID),
			logger.Error(finishErr),
		)
	}

	b.logger.Info("batch cycle finished",
		logger.String("run_id", run.ID),
		logger.Int("claimed", result.Claimed),
		logger.Int("processed", result.Processed),
		logger.Int("duplicates", result.Duplicates),
		logger.Int("failed", result.Failed),
		logger.Float64("estimated_cost_usd", result.Cost.EstimatedCostUSD),
	)

	return result, nil
}

// Reprocess resets failed records to pending and runs a normal batch over
// them.
func (b *BatchProcessor) Reprocess(ctx context.Context, source string, tracker *extract.CostTracker) (*BatchResult, error) {
	reset, err := b.staging.ResetFailed(ctx, source)
	if err != nil {
		return nil, err
	}
	b.logger.Info("reset failed records", logger.Int64("reset", reset))

	return b.ProcessBatch(ctx, source, tracker)
}

// processAll fans the claimed records out to a bounded worker pool and
// collects their outcomes.
func (b *BatchProcessor) processAll(ctx context.Context, records []*domain.StagingRecord, tracker *extract.CostTracker) []itemOutcome {
	if len(records) == 0 {
		return nil
	}

	jobs := make(chan *domain.StagingRecord, len(records))
	results := make(chan itemOutcome, len(records))

	var wg sync.WaitGroup
	for i := 0; i < b.concurrency; i++ {
		wg.Add(1)
		go b.worker(ctx, jobs, results, tracker, &wg)
	}

	for _, rec := range records {
		jobs <- rec
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]itemOutcome, 0, len(records))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// worker processes records from the jobs channel.
func (b *BatchProcessor) worker(
	ctx context.Context,
	jobs <-chan *domain.StagingRecord,
	results chan<- itemOutcome,
	tracker *extract.CostTracker,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for rec := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- b.processItem(ctx, rec, tracker)
	}
}

// processItem runs extraction and dedup for one record and writes its
// terminal staging status.
func (b *BatchProcessor) processItem(ctx context.Context, rec *domain.StagingRecord, tracker *extract.CostTracker) itemOutcome {
	product, usage, err := b.extractor.Extract(ctx, rec)
	tracker.Record(usage)
	if err != nil {
		return b.markFailed(ctx, rec, err)
	}

	existing, err := b.products.FindDuplicate(ctx, product.Brand, product.Name)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return b.markFailed(ctx, rec, err)
	}
	if existing != nil {
		return b.markDuplicate(ctx, rec, existing.ID)
	}

	productID, err := b.products.Insert(ctx, product)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// Another worker inserted the same (name, brand) first.
			winner, readErr := b.products.FindDuplicate(ctx, product.Brand, product.Name)
			if readErr == nil {
				return b.markDuplicate(ctx, rec, winner.ID)
			}
			err = readErr
		}
		return b.markFailed(ctx, rec, err)
	}

	if markErr := b.staging.MarkProcessed(ctx, rec.ID, productID); markErr != nil {
		b.logger.Error("failed to mark record processed",
			logger.Int64("staging_id", rec.ID),
			logger.Error(markErr),
		)
	}

	b.logger.Debug("record processed",
		logger.Int64("staging_id", rec.ID),
		logger.Int64("product_id", productID),
	)

	return itemOutcome{status: domain.StagingStatusProcessed}
}

func (b *BatchProcessor) markDuplicate(ctx context.Context, rec *domain.StagingRecord, productID int64) itemOutcome {
	if err := b.staging.MarkDuplicate(ctx, rec.ID, productID); err != nil {
		b.logger.Error("failed to mark record duplicate",
			logger.Int64("staging_id", rec.ID),
			logger.Error(err),
		)
	}
	return itemOutcome{status: domain.StagingStatusDuplicate}
}

func (b *BatchProcessor) markFailed(ctx context.Context, rec *domain.StagingRecord, cause error) itemOutcome {
	msg := fmt.Sprintf("staging %d: %v", rec.ID, cause)
	if err := b.staging.MarkFailed(ctx, rec.ID, cause.Error()); err != nil {
		b.logger.Error("failed to mark record failed",
			logger.Int64("staging_id", rec.ID),
			logger.Error(err),
		)
	}
	return itemOutcome{status: domain.StagingStatusFailed, errMsg: msg}
}

// failRun closes a run as failed with the given cause.
func (b *BatchProcessor) failRun(ctx context.Context, run *domain.PipelineRun, cause error) {
	run.Status = domain.RunStatusFailed
	run.Errors = append(run.Errors, cause.Error())
	if err := b.runs.Finish(ctx, run); err != nil {
		b.logger.Error("failed to finish run record",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
}
