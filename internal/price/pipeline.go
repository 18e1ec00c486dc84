package price

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/logger"
	"github.com/scottaicode/seoul-sister/internal/sources"
)

// forceAssociateMinConfidence is the threshold for assigning the top
// search result to the searched product when no candidate matched it
// directly. The search query encodes brand+name intent, so a confident
// top hit usually is the product; near-duplicate product lines can still
// be misattributed.
const forceAssociateMinConfidence = 0.6

// Catalog is the product read surface the pipeline needs.
type Catalog interface {
	All(ctx context.Context) ([]*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	ListForPricing(ctx context.Context, retailerID int64, cutoff time.Time, limit int) ([]*domain.Product, error)
}

// Retailers resolves retailer reference rows.
type Retailers interface {
	Ensure(ctx context.Context, name string) (int64, error)
}

// RunStore persists pipeline run records.
type RunStore interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	Finish(ctx context.Context, run *domain.PipelineRun) error
}

// Options selects which products a pricing run refreshes. IDs wins over
// Brand; with neither set, staleness-based selection applies.
type Options struct {
	IDs   []int64
	Brand string
	Limit int
}

// Result summarizes one pricing run for a retailer.
type Result struct {
	RunID    string `json:"run_id"`
	Searched int    `json:"searched"`
	Priced   int    `json:"priced"`
	Missed   int    `json:"missed"`
	Failed   int    `json:"failed"`
}

// Pipeline runs retailer price searches over the catalog.
type Pipeline struct {
	catalog       Catalog
	retailers     Retailers
	upserter      *Upserter
	runs          RunStore
	logger        logger.Logger
	minConfidence float64
	staleness     time.Duration
}

// NewPipeline creates a pipeline.
func NewPipeline(catalog Catalog, retailers Retailers, upserter *Upserter, runs RunStore, minConfidence float64, staleness time.Duration, log logger.Logger) *Pipeline {
	return &Pipeline{
		catalog:       catalog,
		retailers:     retailers,
		upserter:      upserter,
		runs:          runs,
		logger:        log,
		minConfidence: minConfidence,
		staleness:     staleness,
	}
}

// Run prices a batch of products against one retailer, recorded as one
// pipeline run. Products are searched sequentially; retailer rate limits
// are aggressive enough that parallel search is counterproductive.
func (p *Pipeline) Run(ctx context.Context, adapter sources.SourceAdapter, opts Options) (*Result, error) {
	retailerName := adapter.Name()

	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		Source:    retailerName,
		RunType:   domain.RunTypePrices,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := p.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	result := &Result{RunID: run.ID}

	retailerID, err := p.retailers.Ensure(ctx, retailerName)
	if err != nil {
		err = fmt.Errorf("failed to resolve retailer: %w", err)
		p.closeRun(ctx, run, result, err)
		return nil, err
	}

	// The matcher index spans the whole catalog, built once per run.
	all, err := p.catalog.All(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load catalog: %w", err)
		p.closeRun(ctx, run, result, err)
		return nil, err
	}
	matcher := NewMatcher(all, p.minConfidence)

	targets, err := p.selectTargets(ctx, retailerID, all, opts)
	if err != nil {
		p.closeRun(ctx, run, result, err)
		return nil, err
	}

	for _, product := range targets {
		if err := ctx.Err(); err != nil {
			p.closeRun(ctx, run, result, err)
			return result, err
		}
		result.Searched++

		priced, searchErr := p.priceProduct(ctx, adapter, matcher, product, retailerID, retailerName)
		switch {
		case searchErr != nil:
			result.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("product %d: %v", product.ID, searchErr))
			p.logger.Warn("product pricing failed",
				logger.Int64("product_id", product.ID),
				logger.String("retailer", retailerName),
				logger.Error(searchErr),
			)
		case priced:
			result.Priced++
		default:
			result.Missed++
		}
	}

	p.closeRun(ctx, run, result, nil)

	p.logger.Info("pricing run finished",
		logger.String("run_id", run.ID),
		logger.String("retailer", retailerName),
		logger.Int("searched", result.Searched),
		logger.Int("priced", result.Priced),
		logger.Int("missed", result.Missed),
		logger.Int("failed", result.Failed),
	)

	return result, nil
}

// closeRun finishes the run record with final counters.
func (p *Pipeline) closeRun(ctx context.Context, run *domain.PipelineRun, result *Result, cause error) {
	run.Status = domain.RunStatusCompleted
	if cause != nil {
		run.Status = domain.RunStatusFailed
		run.Errors = append(run.Errors, cause.Error())
	}
	run.ProcessedCount = result.Priced
	run.FailedCount = result.Failed
	run.Metadata = domain.JSONMap{
		"searched": result.Searched,
		"missed":   result.Missed,
	}

	// The run record must close even when the run itself was canceled.
	if err := p.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Error("failed to finish run record",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
}

// selectTargets picks the products to refresh: explicit ids, a brand
// filter over the loaded catalog, or staleness-based selection.
func (p *Pipeline) selectTargets(ctx context.Context, retailerID int64, all []*domain.Product, opts Options) ([]*domain.Product, error) {
	if len(opts.IDs) > 0 {
		targets := make([]*domain.Product, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			product, err := p.catalog.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to load product %d: %w", id, err)
			}
			targets = append(targets, product)
		}
		return targets, nil
	}

	if opts.Brand != "" {
		want := normalize(opts.Brand)
		var targets []*domain.Product
		for _, product := range all {
			if normalize(product.Brand) == want {
				targets = append(targets, product)
			}
			if opts.Limit > 0 && len(targets) >= opts.Limit {
				break
			}
		}
		return targets, nil
	}

	cutoff := time.Now().UTC().Add(-p.staleness)
	return p.catalog.ListForPricing(ctx, retailerID, cutoff, opts.Limit)
}

// priceProduct searches the retailer for one product and reconciles the
// results. Returns false when nothing usable came back.
func (p *Pipeline) priceProduct(ctx context.Context, adapter sources.SourceAdapter, matcher *Matcher, product *domain.Product, retailerID int64, retailerName string) (bool, error) {
	candidates, err := adapter.SearchProduct(ctx, product.Brand, product.Name)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}

	match := reconcile(matcher, product, candidates)
	if match == nil {
		return false, nil
	}

	if err := p.upserter.Apply(ctx, match, retailerID, retailerName); err != nil {
		return false, err
	}

	return true, nil
}

// reconcile picks the candidate to record for the searched product. A
// candidate whose match resolves to the searched product wins; otherwise
// the top result is force-associated when its match confidence clears
// forceAssociateMinConfidence.
func reconcile(matcher *Matcher, product *domain.Product, candidates []sources.PriceCandidate) *Match {
	var best *Match
	for _, candidate := range candidates {
		m := matcher.Match(candidate)
		if m == nil || m.Product.ID != product.ID {
			continue
		}
		if best == nil || m.Confidence > best.Confidence {
			best = m
		}
	}
	if best != nil {
		return best
	}

	top := matcher.Match(candidates[0])
	if top != nil && top.Confidence >= forceAssociateMinConfidence {
		return &Match{
			Product:    product,
			Candidate:  candidates[0],
			Confidence: top.Confidence,
			Method:     MethodForced,
		}
	}

	return nil
}
