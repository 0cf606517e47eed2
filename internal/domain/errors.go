package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrClassification signals a classifier reply that maps to no intent.
	ErrClassification = errors.New("classification failed")
	// ErrNoHandler signals an intent without a registered handler (wiring defect).
	ErrNoHandler = errors.New("no handler registered for intent")
	// ErrInvalidRequest signals malformed client input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)

// ClassificationError wraps ErrClassification with the raw model reply.
type ClassificationError struct {
	Reply string
}

func (e *ClassificationError) Error() string {
	if e.Reply == "" {
		return ErrClassification.Error() + ": empty model reply"
	}
	return fmt.Sprintf("%s: unable to map reply %q to an intent", ErrClassification.Error(), e.Reply)
}

func (e *ClassificationError) Unwrap() error { return ErrClassification }

// NewClassificationError creates a classification error for the given reply.
func NewClassificationError(reply string) error {
	return &ClassificationError{Reply: reply}
}
