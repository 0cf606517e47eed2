// Package classify maps a user utterance to one task intent with a single
// completion call.
package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/domain/intent"
	"github.com/kailas-cloud/taskpilot/internal/logger"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
)

// SystemPrompt instructs the model to answer with exactly one intent token.
const SystemPrompt = `You are the request classifier of an assistant for a task-based ETL build tool.
Answer with exactly one word, without punctuation, quotes or explanation.

Allowed answers (English, UPPERCASE):
- FIND_TASK when the user describes a problem and wants to know which task fits it.
- EXPLAIN_TASK when the user wants a specific task explained (features, parameters, behavior).
- GENERATE_TASK when the user wants an example or code for a task, including their own inputs.
- OTHER when none of the three categories fit.

Tie-breaker when ambiguous: GENERATE_TASK > EXPLAIN_TASK > FIND_TASK.

Only these four tokens are allowed: FIND_TASK, EXPLAIN_TASK, GENERATE_TASK, OTHER.

Examples:
- "I need to validate an INTERLIS file. Which task should I use?" -> FIND_TASK
- "Explain the ilivalidator task." -> EXPLAIN_TASK
- "Give me an example for ilivalidator with the file fubar.xtf." -> GENERATE_TASK
- "How do I install Gradle?" -> OTHER

Always answer with one of the four words only.`

// Classifier asks a completion model for the intent of a question.
type Classifier struct {
	model domain.Completer
}

// New creates a classifier backed by the given completer.
func New(model domain.Completer) *Classifier {
	return &Classifier{model: model}
}

// Classify returns the intent for userMessage. An empty or unrecognized reply
// yields an error wrapping domain.ErrClassification; it is never retried.
func (c *Classifier) Classify(ctx context.Context, userMessage string) (intent.Intent, error) {
	reply, err := c.model.Complete(ctx, SystemPrompt, userMessage)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	in, ok := intent.Parse(reply)
	if !ok {
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("Unparseable classifier reply", zap.String("reply", reply))
		return "", domain.NewClassificationError(reply)
	}

	metrics.ClassificationsTotal.WithLabelValues(in.String()).Inc()
	logger.FromContext(ctx).Debug("Classified request", zap.String("intent", in.String()))
	return in, nil
}
