package ingredient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scottaicode/seoul-sister/internal/domain"
	"github.com/scottaicode/seoul-sister/internal/extract"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// ProductStore lists catalog products awaiting links.
type ProductStore interface {
	ListUnlinked(ctx context.Context, limit int) ([]*domain.Product, error)
	CountUnlinked(ctx context.Context) (int, error)
}

// LinkStore writes product-ingredient links.
type LinkStore interface {
	HasLinks(ctx context.Context, productID int64) (bool, error)
	ReplaceLinks(ctx context.Context, productID int64, links []domain.ProductIngredientLink) error
}

// Resolver maps a candidate name to an ingredient id and match type.
type Resolver interface {
	Resolve(ctx context.Context, name string) (int64, string, error)
}

// RunStore persists pipeline run records.
type RunStore interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	Finish(ctx context.Context, run *domain.PipelineRun) error
}

// LinkResult summarizes one linker batch. Remaining counts the unlinked
// products still waiting after the batch.
type LinkResult struct {
	RunID     string             `json:"run_id"`
	Linked    int                `json:"linked"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Created   int                `json:"created"`
	Matched   int                `json:"matched"`
	Remaining int                `json:"remaining"`
	Cost      domain.CostSummary `json:"cost"`
}

// Linker connects catalog products to their parsed, resolved ingredients.
type Linker struct {
	products ProductStore
	links    LinkStore
	resolver Resolver
	runs     RunStore
	logger   logger.Logger
}

// NewLinker creates a linker.
func NewLinker(products ProductStore, links LinkStore, resolver Resolver, runs RunStore, log logger.Logger) *Linker {
	return &Linker{
		products: products,
		links:    links,
		resolver: resolver,
		runs:     runs,
		logger:   log,
	}
}

// LinkBatch links up to limit unlinked products. Products run
// sequentially and fail independently; one bad ingredient string never
// aborts its batch-mates. Re-running over a fully linked catalog is a
// no-op thanks to the existence guard. The batch is recorded as one
// pipeline run carrying the counters and enrichment cost.
func (l *Linker) LinkBatch(ctx context.Context, limit int, tracker *extract.CostTracker) (*LinkResult, error) {
	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		RunType:   domain.RunTypeLink,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := l.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	result := &LinkResult{RunID: run.ID}

	products, err := l.products.ListUnlinked(ctx, limit)
	if err != nil {
		err = fmt.Errorf("failed to list unlinked products: %w", err)
		l.closeRun(ctx, run, result, tracker, err)
		return nil, err
	}

	for _, product := range products {
		if err := ctx.Err(); err != nil {
			l.closeRun(ctx, run, result, tracker, err)
			return result, err
		}

		outcome, linkErr := l.linkProduct(ctx, product, result)
		switch {
		case linkErr != nil:
			result.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("product %d: %v", product.ID, linkErr))
			l.logger.Warn("product linking failed",
				logger.Int64("product_id", product.ID),
				logger.Error(linkErr),
			)
		case outcome:
			result.Linked++
		default:
			result.Skipped++
		}
	}

	remaining, countErr := l.products.CountUnlinked(ctx)
	if countErr != nil {
		l.logger.Warn("failed to count remaining unlinked products", logger.Error(countErr))
	} else {
		result.Remaining = remaining
	}

	l.closeRun(ctx, run, result, tracker, nil)

	l.logger.Info("link batch finished",
		logger.String("run_id", run.ID),
		logger.Int("linked", result.Linked),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
		logger.Int("created", result.Created),
		logger.Int("matched", result.Matched),
		logger.Int("remaining", result.Remaining),
		logger.Float64("estimated_cost_usd", result.Cost.EstimatedCostUSD),
	)

	return result, nil
}

// linkProduct parses, resolves, and writes links for one product.
// Returns false when the product was skipped.
func (l *Linker) linkProduct(ctx context.Context, product *domain.Product, result *LinkResult) (bool, error) {
	// Guard against concurrent linkers and rows linked since listing.
	exists, err := l.links.HasLinks(ctx, product.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if product.RawIngredients == nil {
		return false, nil
	}

	parsed := Parse(*product.RawIngredients)
	if len(parsed) == 0 {
		return false, nil
	}

	links := make([]domain.ProductIngredientLink, 0, len(parsed))
	seen := make(map[int64]bool, len(parsed))

	for _, candidate := range parsed {
		id, matchType, resolveErr := l.resolver.Resolve(ctx, candidate.Name)
		if resolveErr != nil {
			return false, fmt.Errorf("failed to resolve %q: %w", candidate.Name, resolveErr)
		}

		if matchType == MatchCreated {
			result.Created++
		} else {
			result.Matched++
		}

		// A repeated ingredient keeps its first, highest-concentration
		// position.
		if seen[id] {
			continue
		}
		seen[id] = true

		links = append(links, domain.ProductIngredientLink{
			ProductID:    product.ID,
			IngredientID: id,
			Position:     candidate.Position,
		})
	}

	if err := l.links.ReplaceLinks(ctx, product.ID, links); err != nil {
		return false, err
	}

	return true, nil
}

// closeRun finishes the run record with final counters and cost.
func (l *Linker) closeRun(ctx context.Context, run *domain.PipelineRun, result *LinkResult, tracker *extract.CostTracker, cause error) {
	result.Cost = tracker.Summary()

	run.Status = domain.RunStatusCompleted
	if cause != nil {
		run.Status = domain.RunStatusFailed
		run.Errors = append(run.Errors, cause.Error())
	}
	run.ProcessedCount = result.Linked
	run.DuplicateCount = result.Skipped
	run.FailedCount = result.Failed
	run.EstimatedCostUSD = result.Cost.EstimatedCostUSD
	run.Metadata = domain.JSONMap{
		"created":       result.Created,
		"matched":       result.Matched,
		"remaining":     result.Remaining,
		"calls":         result.Cost.Calls,
		"input_tokens":  result.Cost.InputTokens,
		"output_tokens": result.Cost.OutputTokens,
	}

	// The run record must close even when the run itself was canceled.
	if err := l.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		l.logger.Error("failed to finish run record",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
}
