package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	base
	dimensions int
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{base: newBase(cfg), dimensions: cfg.Dimensions}
}

// Embed implements domain.Embedder. Returns the vector and usage with transport-level metrics.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	const capability = metrics.CapabilityEmbedding
	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		perr := parseAPIError(err, capability, domain.ErrEmbeddingProviderError)
		metrics.ModelRequestsTotal.WithLabelValues(capability, e.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(capability, e.model, errorType(perr)).Inc()
		return domain.EmbeddingResult{}, perr
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(capability, e.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(capability, e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.ModelRequestsTotal.WithLabelValues(capability, e.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(capability, e.model).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.ModelTokensTotal.WithLabelValues(capability, e.model, "prompt").Add(float64(promptTokens))
		metrics.ModelTokensTotal.WithLabelValues(capability, e.model, "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}
