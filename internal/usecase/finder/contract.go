package finder

import (
	"context"

	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
)

// Store defines the document store contract for retrieval. Both methods
// return an empty list without error on blank input.
type Store interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]taskdoc.Document, error)
	SearchSemantic(ctx context.Context, vector []float32, limit int) ([]taskdoc.Document, error)
}
