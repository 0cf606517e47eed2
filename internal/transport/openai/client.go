// Package openai implements the completion and embedding capabilities on
// top of any OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/taskpilot/internal/domain"
)

// Config holds the provider settings shared by the embedder and the completer.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // embeddings only
	Provider   string
	Logger     *zap.Logger
	// Limiter throttles outbound requests. Share one across clients of the
	// same account; nil disables throttling.
	Limiter *rate.Limiter
}

// NewLimiter builds a limiter for rps requests per second. rps <= 0 returns nil.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type base struct {
	client   *openai.Client
	model    string
	provider string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func newBase(cfg *Config) base {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return base{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		limiter:  cfg.Limiter,
		logger:   log,
	}
}

// wait blocks until the limiter admits one request or ctx ends.
func (b *base) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (b *base) HealthCheck(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and
// wraps it with the capability sentinel. 429 responses also wrap ErrRateLimited.
func parseAPIError(err error, capability string, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return withRateLimit(reqErr.HTTPStatusCode,
			fmt.Errorf("%s API error %d: %s: %w", capability, reqErr.HTTPStatusCode, detail, wrap))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return withRateLimit(apiErr.HTTPStatusCode,
			fmt.Errorf("%s API error %d: %s: %w", capability, apiErr.HTTPStatusCode, apiErr.Message, wrap))
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w: %w", capability, wrap, err)
	}
	return fmt.Errorf("%s request failed: %w", capability, wrap)
}

func withRateLimit(status int, err error) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return err
}

// errorType is the metrics label for a provider failure.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "api_error"
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
