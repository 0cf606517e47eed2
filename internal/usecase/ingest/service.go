// Package ingest loads documentation fragments into the chunk store.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	domchunk "github.com/kailas-cloud/taskpilot/internal/domain/chunk"
	"github.com/kailas-cloud/taskpilot/internal/logger"
)

// Defaults used when Options fields are zero.
const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 4
)

const maxLineSize = 1 << 20

// Record is one JSON line of an ingestion file.
type Record struct {
	TaskName string `json:"task_name"`
	Heading  string `json:"heading"`
	URL      string `json:"url"`
	Anchor   string `json:"anchor"`
	Content  string `json:"content"`
}

// Report summarizes an ingestion run.
type Report struct {
	Read       int
	Stored     int
	Skipped    int
	Unembedded int
}

// Options tunes ingestion.
type Options struct {
	BatchSize   int
	Concurrency int
}

// Service embeds and stores chunks.
type Service struct {
	repo  Repository
	embed domain.Embedder
	opts  Options
}

// New creates an ingestion service. embed can be nil to store chunks for
// lexical search only.
func New(repo Repository, embed domain.Embedder, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{repo: repo, embed: embed, opts: opts}
}

// LoadJSONL reads one Record per line from r and stores them in batches.
// Malformed lines are skipped and logged; a chunk whose embedding fails is
// stored without a vector. Store failures abort the run.
func (s *Service) LoadJSONL(ctx context.Context, r io.Reader) (Report, error) {
	log := logger.FromContext(ctx)

	var rep Report
	batch := make([]domchunk.Chunk, 0, s.opts.BatchSize)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		rep.Read++

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			rep.Skipped++
			log.Warn("Skipping malformed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		c, err := domchunk.New(rec.TaskName, rec.Heading, rec.URL, rec.Anchor, rec.Content)
		if err != nil {
			rep.Skipped++
			log.Warn("Skipping invalid chunk", zap.Int("line", line), zap.Error(err))
			continue
		}

		batch = append(batch, c)
		if len(batch) == s.opts.BatchSize {
			if err := s.flush(ctx, batch, &rep); err != nil {
				return rep, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return rep, fmt.Errorf("read line %d: %w", line+1, err)
	}

	if err := s.flush(ctx, batch, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// Store embeds and stores the given chunks.
func (s *Service) Store(ctx context.Context, chunks ...domchunk.Chunk) (Report, error) {
	rep := Report{Read: len(chunks)}
	err := s.flush(ctx, chunks, &rep)
	return rep, err
}

func (s *Service) flush(ctx context.Context, batch []domchunk.Chunk, rep *Report) error {
	if len(batch) == 0 {
		return nil
	}

	embedded, err := s.embedAll(ctx, batch)
	if err != nil {
		return err
	}
	for i := range embedded {
		if len(embedded[i].Vector()) == 0 && s.embed != nil {
			rep.Unembedded++
		}
	}

	if err := s.repo.Upsert(ctx, embedded...); err != nil {
		return fmt.Errorf("store batch of %d: %w", len(embedded), err)
	}
	rep.Stored += len(embedded)
	return nil
}

// embedAll attaches vectors to copies of the chunks. Only cancellation of
// ctx is reported as an error.
func (s *Service) embedAll(ctx context.Context, batch []domchunk.Chunk) ([]domchunk.Chunk, error) {
	out := make([]domchunk.Chunk, len(batch))
	copy(out, batch)
	if s.embed == nil {
		return out, nil
	}

	log := logger.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range out {
		g.Go(func() error {
			res, err := s.embed.Embed(gctx, out[i].EmbeddingText())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("Embedding failed, storing chunk for lexical search only",
					zap.String("chunk_id", out[i].ID()), zap.Error(err))
				return nil
			}
			out[i] = out[i].WithVector(res.Embedding)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	return out, nil
}
