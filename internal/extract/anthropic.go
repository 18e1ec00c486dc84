package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/scottaicode/seoul-sister/internal/config"
)

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicClient creates a client from configuration.
func NewAnthropicClient(cfg config.AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
	}, nil
}

// Complete sends one message and returns the concatenated text blocks of
// the response.
func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("message request failed: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		text += block.Text
	}

	usage := Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}

	return text, usage, nil
}
