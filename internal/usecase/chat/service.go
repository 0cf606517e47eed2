// Package chat runs questions through the router, either inline or on a
// background goroutine whose answer is published to the client's mailbox.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/logger"
	"github.com/kailas-cloud/taskpilot/internal/usecase/router"
)

// FailureMessage is published to the client when an async request fails.
const FailureMessage = "We could not process your request right now. Please try again."

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Service coordinates synchronous and asynchronous chat requests.
type Service struct {
	orch    Orchestrator
	pub     Publisher
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a chat service.
func New(orch Orchestrator, pub Publisher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{orch: orch, pub: pub, timeout: timeout, base: base, cancel: cancel}
}

// Respond answers a question inline.
func (s *Service) Respond(ctx context.Context, message string) (router.Execution, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return router.Execution{}, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exec, err := s.orch.Orchestrate(ctx, message)
	if err != nil {
		return router.Execution{}, fmt.Errorf("respond: %w", err)
	}
	return exec, nil
}

// Submit accepts a question for clientID and answers it in the background.
// It returns the echoed user message, or false when the message is blank.
// The answer, or FailureMessage, is published to the client's mailbox.
func (s *Service) Submit(ctx context.Context, clientID, message string) (delivery.Message, bool) {
	message = strings.TrimSpace(message)
	if message == "" {
		return delivery.Message{}, false
	}

	// The request context ends with the HTTP response; keep its values only.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	runCtx = logger.WithFields(runCtx, zap.String("client_id", clientID))
	stop := context.AfterFunc(s.base, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()
		s.process(runCtx, clientID, message)
	}()

	return delivery.UserMessage(message), true
}

func (s *Service) process(ctx context.Context, clientID, message string) {
	log := logger.FromContext(ctx)

	exec, err := s.orch.Orchestrate(ctx, message)
	if err != nil {
		log.Warn("Async chat request failed", zap.Error(err))
		s.pub.Publish(clientID, delivery.SystemMessage(FailureMessage))
		return
	}
	if strings.TrimSpace(exec.Answer) == "" {
		log.Warn("Async chat request produced a blank answer", zap.String("intent", exec.Intent.String()))
		s.pub.Publish(clientID, delivery.SystemMessage(FailureMessage))
		return
	}

	s.pub.Publish(clientID, delivery.AssistantMessage(exec.Answer, exec.Intent.String()))
	log.Debug("Async chat answer published", zap.String("intent", exec.Intent.String()))
}

// Shutdown waits for in-flight background requests. When ctx ends first the
// remaining requests are cancelled and their failure notices still published.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("chat shutdown: %w", ctx.Err())
	}
}
