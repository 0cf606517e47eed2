package ingest

import (
	"context"

	domchunk "github.com/kailas-cloud/taskpilot/internal/domain/chunk"
)

// Repository stores chunks, replacing chunks with the same ID.
type Repository interface {
	Upsert(ctx context.Context, chunks ...domchunk.Chunk) error
}
