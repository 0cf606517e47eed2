// Package chunksql is the embedded chunk store: SQLite with an FTS5 index
// for lexical search and brute-force cosine ranking in Go for semantic search.
package chunksql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/taskpilot/internal/db"
	domchunk "github.com/kailas-cloud/taskpilot/internal/domain/chunk"
	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// BM25 column weights for task_name, heading and content.
const bm25Weights = "2.0, 1.0, 1.0"

// Store implements finder.Store and ingest.Repository on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection: a single writer, and ":memory:" databases are per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: conn}, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RebuildIndex regenerates the full-text index from the chunks table.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO chunks_fts(chunks_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuild fts index: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO chunks (id, task_name, heading, url, anchor, content, vector, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
    task_name = excluded.task_name,
    heading = excluded.heading,
    url = excluded.url,
    anchor = excluded.anchor,
    content = excluded.content,
    vector = excluded.vector,
    updated_at = CURRENT_TIMESTAMP`

// Upsert stores chunks in one transaction, replacing chunks with the same ID.
func (s *Store) Upsert(ctx context.Context, chunks ...domchunk.Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range chunks {
		c := &chunks[i]
		var blob []byte
		if v := c.Vector(); len(v) > 0 {
			blob = []byte(db.EncodeVector(v))
		}
		if _, err = stmt.ExecContext(ctx,
			c.ID(), c.TaskName(), c.Heading(), c.URL(), c.Anchor(), c.Content(), blob,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete chunk %s: %w", id, err)
	}
	return nil
}

// SearchLexical returns up to limit chunks matching any term of the query.
// The score is the negated FTS5 bm25() rank, so higher is better.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]taskdoc.Document, error) {
	match := ftsMatch(domchunk.QueryTerms(query))
	if match == "" || limit <= 0 {
		return []taskdoc.Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.task_name, c.heading, c.url, c.anchor, c.content,
		       -bm25(chunks_fts, `+bm25Weights+`) AS score
		FROM chunks_fts
		JOIN chunks c ON c.pk = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score DESC, c.id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]taskdoc.Document, 0, limit)
	for rows.Next() {
		var task, heading, url, anchor, content string
		var score float64
		if err := rows.Scan(&task, &heading, &url, &anchor, &content, &score); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		docs = append(docs, taskdoc.Lexical(task, heading, url, anchor, content, score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return docs, nil
}

// ftsMatch ORs the terms as FTS5 string literals. Terms carry only letters
// and digits, so quoting them is enough to keep FTS5 operators out.
func ftsMatch(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

type candidate struct {
	id       string
	doc      [5]string
	distance float64
}

// SearchSemantic ranks every embedded chunk by cosine distance to vector and
// returns the nearest limit, scored 1/(1+distance). Chunks whose vector has a
// different dimension are skipped.
func (s *Store) SearchSemantic(ctx context.Context, vector []float32, limit int) ([]taskdoc.Document, error) {
	if len(vector) == 0 || limit <= 0 {
		return []taskdoc.Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_name, heading, url, anchor, content, vector
		FROM chunks
		WHERE vector IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		var blob []byte
		if err := rows.Scan(&c.id, &c.doc[0], &c.doc[1], &c.doc[2], &c.doc[3], &c.doc[4], &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		stored, err := db.DecodeVector(blob)
		if err != nil || len(stored) != len(vector) {
			continue
		}
		c.distance = 1 - cosine(vector, stored)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if a.distance != b.distance {
			if a.distance < b.distance {
				return -1
			}
			return 1
		}
		return strings.Compare(a.id, b.id)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	docs := make([]taskdoc.Document, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, taskdoc.Semantic(c.doc[0], c.doc[1], c.doc[2], c.doc[3], c.doc[4],
			taskdoc.DistanceScore(c.distance)))
	}
	return docs, nil
}

// cosine returns the cosine similarity of a and b, 0 when either is a zero vector.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
