// Package finder answers "which task does X" questions with a hybrid
// lexical and semantic shortlist from the documentation store.
package finder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
	"github.com/kailas-cloud/taskpilot/internal/logger"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
	"github.com/kailas-cloud/taskpilot/internal/usecase/fusion"
)

// Fixed replies.
const (
	GuidanceMessage = "Please describe your problem in a bit more detail so I can look for matching tasks."
	NoMatchMessage  = "I could not find any tasks in the documentation that match your request."
)

// Defaults used when Options fields are zero.
const (
	DefaultCandidateLimit = 12
	DefaultResultLimit    = 5
	DefaultSnippetLength  = 220
)

// Degradation reasons.
const (
	reasonNoEmbedder     = "no_embedder"
	reasonEmbeddingError = "embedding_error"
	reasonNoSemanticHits = "no_semantic_hits"
)

// Options tunes retrieval. Zero values fall back to the defaults.
type Options struct {
	CandidateLimit int
	ResultLimit    int
	Weights        fusion.Weights
	SnippetLength  int
}

func (o Options) withDefaults() Options {
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = DefaultCandidateLimit
	}
	if o.ResultLimit <= 0 {
		o.ResultLimit = DefaultResultLimit
	}
	if o.Weights == (fusion.Weights{}) {
		o.Weights = fusion.DefaultWeights
	}
	if o.SnippetLength <= 3 {
		o.SnippetLength = DefaultSnippetLength
	}
	return o
}

// Agent is the retrieval handler for FIND questions.
type Agent struct {
	store Store
	embed domain.Embedder
	opts  Options
}

// New creates a retrieval agent. embed can be nil for lexical-only ranking.
func New(store Store, embed domain.Embedder, opts Options) *Agent {
	return &Agent{store: store, embed: embed, opts: opts.withDefaults()}
}

// Handle searches both channels concurrently, fuses the candidates and
// formats a numbered shortlist. Store failures propagate; embedding failures
// degrade to lexical-only ranking.
func (a *Agent) Handle(ctx context.Context, userMessage string) (string, error) {
	query := strings.TrimSpace(userMessage)
	if query == "" {
		return GuidanceMessage, nil
	}

	log := logger.FromContext(ctx)

	var (
		lexical, semantic []taskdoc.Document
		embedded          bool
		degradeReason     string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := a.store.SearchLexical(gctx, query, a.opts.CandidateLimit)
		if err != nil {
			return fmt.Errorf("search lexical: %w", err)
		}
		lexical = docs
		return nil
	})
	g.Go(func() error {
		vector, reason := a.vectorize(gctx, query)
		if vector == nil {
			degradeReason = reason
			return nil
		}
		embedded = true
		docs, err := a.store.SearchSemantic(gctx, vector, a.opts.CandidateLimit)
		if err != nil {
			return fmt.Errorf("search semantic: %w", err)
		}
		semantic = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err //nolint:wrapcheck // already wrapped per channel
	}

	semanticUsed := embedded && len(semantic) > 0
	if !semanticUsed {
		if degradeReason == "" {
			degradeReason = reasonNoSemanticHits
		}
		metrics.RetrievalDegradedTotal.WithLabelValues(degradeReason).Inc()
		log.Warn("Retrieval without semantic ranking", zap.String("reason", degradeReason))
	}

	ranked := fusion.Fuse(lexical, semantic, a.opts.Weights, a.opts.ResultLimit)
	for _, r := range ranked {
		log.Debug("Ranked document",
			zap.String("task", r.Document().TaskName()),
			zap.Float64("combined", r.Combined()),
			zap.Float64("lexical", r.Lexical()),
			zap.Float64("semantic", r.Semantic()),
		)
	}

	if len(ranked) == 0 {
		return NoMatchMessage, nil
	}
	return a.format(query, ranked, semanticUsed), nil
}

// vectorize returns nil and a degradation reason when no embedding is available.
func (a *Agent) vectorize(ctx context.Context, query string) ([]float32, string) {
	if a.embed == nil {
		return nil, reasonNoEmbedder
	}
	res, err := a.embed.Embed(ctx, query)
	if err != nil {
		logger.FromContext(ctx).Warn("Query embedding failed, falling back to lexical-only ranking", zap.Error(err))
		return nil, reasonEmbeddingError
	}
	if len(res.Embedding) == 0 {
		return nil, reasonEmbeddingError
	}
	return res.Embedding, ""
}
