// Package chunk stores documentation chunks as Redis hashes covered by one
// FT index, and answers the lexical (BM25) and semantic (KNN) lookups of the
// retrieval agent.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/taskpilot/internal/db"
	"github.com/kailas-cloud/taskpilot/internal/domain"
	domchunk "github.com/kailas-cloud/taskpilot/internal/domain/chunk"
	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
)

// DefaultIndexName is the FT index covering all chunk hashes.
const DefaultIndexName = "taskpilot:chunks"

// KeyPrefix is the hash key prefix of stored chunks.
const KeyPrefix = domain.KeyPrefix + "chunk:"

const (
	fieldTaskName = "task_name"
	fieldHeading  = "heading"
	fieldURL      = "url"
	fieldAnchor   = "anchor"
	fieldContent  = "content"
	fieldVector   = db.DefaultVectorField

	taskNameWeight = 2
)

var returnFields = []string{fieldTaskName, fieldHeading, fieldURL, fieldAnchor, fieldContent}

// store is the consumer interface for chunk storage (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Config describes the chunk index.
type Config struct {
	IndexName  string
	Dimensions int
}

// Repo implements finder.Store and ingest.Repository on Redis.
type Repo struct {
	store store
	index string
	dim   int
}

// New creates a chunk repository.
func New(s store, cfg Config) *Repo {
	name := cfg.IndexName
	if name == "" {
		name = DefaultIndexName
	}
	return &Repo{store: s, index: name, dim: cfg.Dimensions}
}

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// EnsureIndex creates the chunk index unless it already exists.
// It returns true when the index was created by this call.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", r.index, err)
	}
	if exists {
		return false, nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return false, err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", r.index, err)
	}
	return true, nil
}

// ResetIndex drops the chunk index and creates it again from the current
// schema. Stored hashes are kept and re-indexed by the server, so a changed
// vector dimension takes effect without re-ingesting.
func (r *Repo) ResetIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.index, err)
	}
	if _, err := r.EnsureIndex(ctx); err != nil {
		return err
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(r.index).
		Prefix(KeyPrefix).
		WeightedText(fieldTaskName, taskNameWeight).
		Text(fieldHeading).
		Text(fieldContent)
	if r.dim > 0 {
		b = b.VectorFlat(fieldVector, r.dim, db.DistanceCosine)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", r.index, err)
	}
	return def, nil
}

// Upsert stores chunks in one pipelined round-trip. Chunks without a vector
// are still searchable lexically.
func (r *Repo) Upsert(ctx context.Context, chunks ...domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		fields := map[string]string{
			fieldTaskName: c.TaskName(),
			fieldHeading:  c.Heading(),
			fieldURL:      c.URL(),
			fieldAnchor:   c.Anchor(),
			fieldContent:  c.Content(),
		}
		if v := c.Vector(); len(v) > 0 {
			if r.dim > 0 && len(v) != r.dim {
				return fmt.Errorf("chunk %s: vector has %d dimensions, index expects %d", c.ID(), len(v), r.dim)
			}
			fields[fieldVector] = db.EncodeVector(v)
		}
		items = append(items, db.HashSetItem{Key: KeyPrefix + c.ID(), Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store %d chunks: %w", len(items), err)
	}
	return nil
}

// Delete removes a chunk by ID.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, KeyPrefix+id); err != nil {
		return fmt.Errorf("delete chunk %s: %w", id, err)
	}
	return nil
}

// SearchLexical returns up to limit chunks matching any term of the query,
// scored by BM25.
func (r *Repo) SearchLexical(ctx context.Context, query string, limit int) ([]taskdoc.Document, error) {
	terms := domchunk.QueryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []taskdoc.Document{}, nil
	}

	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.index,
		Terms:        terms,
		TopK:         limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search %s: %w", r.index, err)
	}

	return toDocuments(sr, func(e db.SearchEntry) float64 { return e.Score }, taskdoc.Lexical), nil
}

// SearchSemantic returns up to limit chunks nearest to vector. The cosine
// distance d reported by the index is scored as 1/(1+d).
func (r *Repo) SearchSemantic(ctx context.Context, vector []float32, limit int) ([]taskdoc.Document, error) {
	if len(vector) == 0 || limit <= 0 {
		return []taskdoc.Document{}, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic search %s: %w", r.index, err)
	}

	return toDocuments(sr, func(e db.SearchEntry) float64 { return taskdoc.DistanceScore(e.Score) }, taskdoc.Semantic), nil
}

type docFactory func(taskName, heading, url, anchor, content string, score float64) taskdoc.Document

func toDocuments(sr *db.SearchResult, score func(db.SearchEntry) float64, build docFactory) []taskdoc.Document {
	if sr == nil {
		return []taskdoc.Document{}
	}
	docs := make([]taskdoc.Document, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		f := e.Fields
		if strings.TrimSpace(f[fieldTaskName]) == "" {
			continue
		}
		docs = append(docs, build(f[fieldTaskName], f[fieldHeading], f[fieldURL], f[fieldAnchor], f[fieldContent], score(e)))
	}
	return docs
}
