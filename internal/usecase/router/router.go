// Package router classifies a question and dispatches it to the handler
// registered for its intent.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/domain/intent"
	"github.com/kailas-cloud/taskpilot/internal/logger"
)

// Handlers holds one handler per intent. Other is optional.
type Handlers struct {
	Find     Handler
	Explain  Handler
	Generate Handler
	Other    Handler
}

// Execution is the outcome of one routed request.
type Execution struct {
	Intent intent.Intent
	Answer string
}

// Router owns the intent to handler dispatch.
type Router struct {
	classifier Classifier
	handlers   Handlers
}

// New validates the wiring and creates a router.
func New(classifier Classifier, handlers Handlers) (*Router, error) {
	if classifier == nil {
		return nil, errors.New("router: classifier is required")
	}
	r := &Router{classifier: classifier, handlers: handlers}
	var missing []string
	for _, in := range intent.All() {
		if in != intent.Other && r.handlerFor(in) == nil {
			missing = append(missing, in.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("router: %w: %v", domain.ErrNoHandler, missing)
	}
	return r, nil
}

// Orchestrate classifies userMessage and runs the matching handler synchronously.
func (r *Router) Orchestrate(ctx context.Context, userMessage string) (Execution, error) {
	start := time.Now()

	in, err := r.classifier.Classify(ctx, userMessage)
	if err != nil {
		return Execution{}, fmt.Errorf("orchestrate: %w", err)
	}

	h := r.handlerFor(in)
	if h == nil {
		return Execution{}, fmt.Errorf("orchestrate %s: %w", in, domain.ErrNoHandler)
	}

	answer, err := h.Handle(ctx, userMessage)
	if err != nil {
		return Execution{}, fmt.Errorf("handle %s: %w", in, err)
	}

	logger.FromContext(ctx).Debug("Request orchestrated",
		zap.String("intent", in.String()),
		zap.Duration("duration", time.Since(start)),
	)
	return Execution{Intent: in, Answer: answer}, nil
}

func (r *Router) handlerFor(in intent.Intent) Handler {
	switch in {
	case intent.Find:
		return r.handlers.Find
	case intent.Explain:
		return r.handlers.Explain
	case intent.Generate:
		return r.handlers.Generate
	case intent.Other:
		return r.handlers.Other
	default:
		return nil
	}
}
