package chi

import (
	"context"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
	healthuc "github.com/kailas-cloud/taskpilot/internal/usecase/health"
	"github.com/kailas-cloud/taskpilot/internal/usecase/router"
)

// ChatService answers questions inline or in the background.
type ChatService interface {
	Respond(ctx context.Context, message string) (router.Execution, error)
	Submit(ctx context.Context, clientID, message string) (delivery.Message, bool)
}

// Mailboxes hands published messages to push and pull consumers.
type Mailboxes interface {
	Subscribe(clientID string) *delivery.Subscription
	Drain(clientID string) []delivery.Message
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
