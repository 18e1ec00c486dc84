package domain

import "time"

// PipelineRun status constants.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun run type constants.
const (
	RunTypeScrape  = "scrape"
	RunTypeProcess = "process"
	RunTypeLink    = "link"
	RunTypePrices  = "prices"
)

// CostSummary aggregates language-model usage for one run.
type CostSummary struct {
	Calls            int     `json:"calls"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// PipelineRun records one pipeline invocation: counters, cost, and a
// free-form errors list consumable by operational tooling.
type PipelineRun struct {
	ID      string `db:"id"       json:"id"`
	Source  string `db:"source"   json:"source"`
	RunType string `db:"run_type" json:"run_type"`
	Status  string `db:"status"   json:"status"`

	ScrapedCount   int `db:"scraped_count"   json:"scraped_count"`
	ProcessedCount int `db:"processed_count" json:"processed_count"`
	FailedCount    int `db:"failed_count"    json:"failed_count"`
	DuplicateCount int `db:"duplicate_count" json:"duplicate_count"`

	EstimatedCostUSD float64  `db:"estimated_cost_usd" json:"estimated_cost_usd"`
	Metadata         JSONMap  `db:"metadata"           json:"metadata,omitempty"`
	Errors           JSONList `db:"errors"             json:"errors,omitempty"`

	StartedAt  time.Time  `db:"started_at"  json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
