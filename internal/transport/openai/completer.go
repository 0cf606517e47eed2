package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
)

// Completer is a chat completion provider using the OpenAI-compatible API.
type Completer struct {
	base
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{base: newBase(cfg)}
}

// Complete implements domain.Completer with one system and one user message.
func (c *Completer) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCompletionProviderError, err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	const capability = metrics.CapabilityCompletion
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		perr := parseAPIError(err, capability, domain.ErrCompletionProviderError)
		metrics.ModelRequestsTotal.WithLabelValues(capability, c.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(capability, c.model, errorType(perr)).Inc()
		return "", perr
	}

	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(capability, c.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(capability, c.model, "empty_response").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	metrics.ModelRequestsTotal.WithLabelValues(capability, c.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(capability, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.ModelTokensTotal.WithLabelValues(capability, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ModelTokensTotal.WithLabelValues(capability, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
		metrics.ModelTokensTotal.WithLabelValues(capability, c.model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}
