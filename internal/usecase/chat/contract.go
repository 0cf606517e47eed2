package chat

import (
	"context"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
	"github.com/kailas-cloud/taskpilot/internal/usecase/router"
)

// Orchestrator turns a question into a routed answer.
type Orchestrator interface {
	Orchestrate(ctx context.Context, userMessage string) (router.Execution, error)
}

// Publisher hands a message to a client session.
type Publisher interface {
	Publish(clientID string, msg delivery.Message)
}
