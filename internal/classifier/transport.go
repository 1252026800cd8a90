package classifier

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Transport sends one rendered prompt to a chat completion backend and
// returns its text response plus token usage. The interface is the
// single vendor boundary: Classify never imports the SDK types
// directly, so tests can substitute a fake transport.
type Transport interface {
	Send(ctx context.Context, prompt string) (text string, usage TokenUsage, err error)
}

// TokenUsage mirrors the subset of the Messages API usage block the
// pipeline reports in its run metrics.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// anthropicTransport binds Transport to anthropic-sdk-go's Messages API.
type anthropicTransport struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewAnthropicTransport builds a Transport bound to the Messages API
// using apiKey, model, and generation parameters from configuration.
func NewAnthropicTransport(apiKey, model string, maxTokens int, temperature float64) Transport {
	return &anthropicTransport{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

func (t *anthropicTransport) Send(ctx context.Context, prompt string) (string, TokenUsage, error) {
	message, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       t.model,
		MaxTokens:   t.maxTokens,
		Temperature: anthropic.Float(t.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", TokenUsage{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	usage := TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	return text, usage, nil
}
