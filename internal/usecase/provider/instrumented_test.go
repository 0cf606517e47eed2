package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/logger"
)

// --- Mocks ---

type mockEmbedder struct {
	result    domain.EmbeddingResult
	err       error
	healthErr error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthErr }

type mockCompleter struct {
	reply string
	err   error
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return m.reply, m.err
}

func observedContext(level zap.AtomicLevel) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logger.ContextWithLogger(context.Background(), zap.New(core)), logs
}

// --- Tests ---

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 4,
		TotalTokens:  4,
	}}
	p := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small")

	ctx, logs := observedContext(zap.NewAtomicLevelAt(zap.DebugLevel))
	result, err := p.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if logs.FilterMessage("Embedding request completed").Len() != 1 {
		t.Errorf("expected completion log, got %v", logs.All())
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	innerErr := errors.New("provider down")
	p := NewInstrumentedEmbedder(&mockEmbedder{err: innerErr}, "openai", "m")

	ctx, logs := observedContext(zap.NewAtomicLevelAt(zap.InfoLevel))
	_, err := p.Embed(ctx, "hello")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
	if logs.FilterMessage("Embedding request failed").Len() != 1 {
		t.Errorf("expected failure log, got %v", logs.All())
	}
}

func TestInstrumentedEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("down")
	p := NewInstrumentedEmbedder(&mockEmbedder{healthErr: down}, "openai", "m")
	if err := p.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected inner health error, got %v", err)
	}
}

func TestInstrumentedCompleter(t *testing.T) {
	p := NewInstrumentedCompleter(&mockCompleter{reply: "FIND_TASK"}, "openai", "gpt-4o-mini")
	got, err := p.Complete(context.Background(), "sys", "user")
	if err != nil || got != "FIND_TASK" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}

	innerErr := errors.New("rate limited")
	p = NewInstrumentedCompleter(&mockCompleter{err: innerErr}, "openai", "gpt-4o-mini")
	if _, err := p.Complete(context.Background(), "sys", "user"); !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstrumentedCompleter_HealthCheckWithoutChecker(t *testing.T) {
	p := NewInstrumentedCompleter(&mockCompleter{}, "stub", "keyword")
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
