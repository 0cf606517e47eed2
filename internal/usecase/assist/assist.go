// Package assist holds the completion-backed handlers for explanation and
// generation requests, plus the fixed reply for out-of-scope questions.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/taskpilot/internal/domain"
)

// OutOfScopeMessage answers questions that fit none of the task intents.
const OutOfScopeMessage = "I can only help with finding, explaining or generating tasks. " +
	"Please rephrase your question around a specific task or problem."

// System instructions per handler.
const (
	ExplainPrompt = `You explain tasks of a task-based ETL build tool.
Describe what the task the user asks about does, its parameters and its typical use.
Answer concisely in Markdown.`

	GeneratePrompt = `You write build script examples for tasks of a task-based ETL build tool.
Produce a short, runnable configuration example for the task the user asks about, using any inputs they provide.
Answer with a Markdown code block followed by a brief explanation.`
)

// Agent answers with a single completion call under a fixed instruction.
type Agent struct {
	model  domain.Completer
	prompt string
	name   string
}

// NewExplainer creates the EXPLAIN handler.
func NewExplainer(model domain.Completer) *Agent {
	return &Agent{model: model, prompt: ExplainPrompt, name: "explain"}
}

// NewGenerator creates the GENERATE handler.
func NewGenerator(model domain.Completer) *Agent {
	return &Agent{model: model, prompt: GeneratePrompt, name: "generate"}
}

// Handle sends the question with the agent instruction and returns the reply.
func (a *Agent) Handle(ctx context.Context, userMessage string) (string, error) {
	reply, err := a.model.Complete(ctx, a.prompt, strings.TrimSpace(userMessage))
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.name, err)
	}
	return strings.TrimSpace(reply), nil
}

// OutOfScope is the OTHER handler.
func OutOfScope(_ context.Context, _ string) (string, error) {
	return OutOfScopeMessage, nil
}
