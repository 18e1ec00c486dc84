// Package extract turns raw staged records into normalized catalog
// products via a hosted language model, validating and coercing
// everything the model returns.
package extract

import "context"

// Usage is the token count for one model call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Client is the narrow language-model interface the pipeline depends on.
// It sends a system instruction plus a user prompt and returns the raw
// response text with token usage.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, Usage, error)
}
