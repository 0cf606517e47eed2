package router

import (
	"context"

	"github.com/kailas-cloud/taskpilot/internal/domain/intent"
)

// Classifier decides which intent a question belongs to.
type Classifier interface {
	Classify(ctx context.Context, userMessage string) (intent.Intent, error)
}

// Handler answers a question for one intent.
type Handler interface {
	Handle(ctx context.Context, userMessage string) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, userMessage string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, userMessage string) (string, error) {
	return f(ctx, userMessage)
}
