package extract

import (
	"math"
	"sync"

	"github.com/scottaicode/seoul-sister/internal/domain"
)

// Per-token pricing in USD.
const (
	inputTokenCostUSD  = 3e-6
	outputTokenCostUSD = 15e-6
)

// CostTracker accumulates token usage across the model calls of one run.
// Safe for concurrent use; processing chunks record into one tracker.
type CostTracker struct {
	mu           sync.Mutex
	calls        int
	inputTokens  int64
	outputTokens int64
}

// NewCostTracker creates an empty tracker, scoped to one run.
func NewCostTracker() *CostTracker {
	return &CostTracker{}
}

// Record adds one call's usage.
func (t *CostTracker) Record(usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.inputTokens += usage.InputTokens
	t.outputTokens += usage.OutputTokens
}

// Summary returns the accumulated totals with the estimated cost rounded
// to four decimal places.
func (t *CostTracker) Summary() domain.CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := float64(t.inputTokens)*inputTokenCostUSD + float64(t.outputTokens)*outputTokenCostUSD

	return domain.CostSummary{
		Calls:            t.calls,
		InputTokens:      t.inputTokens,
		OutputTokens:     t.outputTokens,
		EstimatedCostUSD: math.Round(cost*1e4) / 1e4,
	}
}
