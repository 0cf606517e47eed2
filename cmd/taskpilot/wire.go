package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/taskpilot/internal/config"
	dbRedis "github.com/kailas-cloud/taskpilot/internal/db/redis"
	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
	chunkrepo "github.com/kailas-cloud/taskpilot/internal/repository/chunk"
	"github.com/kailas-cloud/taskpilot/internal/repository/chunksql"
	"github.com/kailas-cloud/taskpilot/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/taskpilot/internal/transport/openai"
	"github.com/kailas-cloud/taskpilot/internal/transport/stub"
	healthuc "github.com/kailas-cloud/taskpilot/internal/usecase/health"
	"github.com/kailas-cloud/taskpilot/internal/usecase/assist"
	"github.com/kailas-cloud/taskpilot/internal/usecase/classify"
	"github.com/kailas-cloud/taskpilot/internal/usecase/finder"
	"github.com/kailas-cloud/taskpilot/internal/usecase/fusion"
	"github.com/kailas-cloud/taskpilot/internal/usecase/ingest"
	"github.com/kailas-cloud/taskpilot/internal/usecase/provider"
	"github.com/kailas-cloud/taskpilot/internal/usecase/router"
)

// chunkBackend is what both document store drivers provide.
type chunkBackend interface {
	finder.Store
	ingest.Repository
	healthuc.StorePinger
}

type chunkStore struct {
	chunks chunkBackend
	// kv backs the embedding cache; nil when the driver has no KV store.
	kv *dbRedis.Store
	// reindex rebuilds the search index from stored chunks.
	reindex func(ctx context.Context) error
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*chunkStore, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		s, err := chunksql.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("Opened SQLite document store", zap.String("path", cfg.Database.SQLitePath))
		return &chunkStore{chunks: s, reindex: s.RebuildIndex, close: func() { _ = s.Close() }}, nil

	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

		repo := chunkrepo.New(s, chunkrepo.Config{
			IndexName:  cfg.Database.IndexName,
			Dimensions: cfg.Models.EmbeddingDimensions,
		})
		created, err := repo.EnsureIndex(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure chunk index: %w", err)
		}
		if created {
			logger.Info("Created chunk index", zap.String("index", cfg.Database.IndexName))
		}
		return &chunkStore{chunks: repo, kv: s, reindex: repo.ResetIndex, close: s.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// modelSet holds the capabilities each handler talks to. Without an API key
// every capability is a deterministic stub.
type modelSet struct {
	classifier domain.Completer
	explainer  domain.Completer
	generator  domain.Completer
	// document embeds stored chunks, query embeds questions (with instruction).
	document domain.Embedder
	query    domain.Embedder

	embeddingCheck  healthuc.ProviderChecker
	completionCheck healthuc.ProviderChecker
}

func buildModels(cfg *config.Config, kv *dbRedis.Store, logger *zap.Logger) modelSet {
	m := cfg.Models
	if !m.Enabled() {
		logger.Warn("No model API key configured, using deterministic stubs")
		set := modelSet{
			classifier: stub.KeywordClassifier{},
			explainer:  stub.MockExplanation,
			generator:  stub.MockGeneration,
		}
		if !cfg.Retrieval.DisableSemantic {
			emb := stub.HashEmbedder{Dimensions: m.EmbeddingDimensions}
			set.document, set.query = emb, emb
		}
		return set
	}

	// One limiter per account, shared by every client.
	limiter := openaiTransport.NewLimiter(m.RequestsPerSecond, m.Burst)

	completer := func(model string) *provider.InstrumentedCompleter {
		base := openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:   m.APIKey,
			BaseURL:  m.BaseURL,
			Model:    model,
			Provider: m.Provider,
			Logger:   logger,
			Limiter:  limiter,
		})
		return provider.NewInstrumentedCompleter(base, m.Provider, model)
	}

	classifier := completer(m.ClassifierModel)
	set := modelSet{
		classifier:      classifier,
		explainer:       completer(m.ExplainModel),
		generator:       completer(m.GenerateModel),
		completionCheck: classifier,
	}

	if cfg.Retrieval.DisableSemantic {
		logger.Info("Semantic retrieval disabled")
		return set
	}

	doc := buildEmbedder(cfg, kv, limiter, logger)
	set.document = doc
	set.query = doc
	if m.QueryInstruction != "" {
		set.query = domain.NewInstructionEmbedder(doc, m.QueryInstruction)
	}
	set.embeddingCheck = doc

	logger.Info("Models configured",
		zap.String("provider", m.Provider),
		zap.String("classifier", m.ClassifierModel),
		zap.String("embedding", m.EmbeddingModel),
		zap.Int("dimensions", m.EmbeddingDimensions),
	)
	return set
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// The instruction prefix wraps the result, so cache keys include it.
func buildEmbedder(
	cfg *config.Config,
	kv *dbRedis.Store,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *provider.InstrumentedEmbedder {
	m := cfg.Models
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     m.APIKey,
		BaseURL:    m.BaseURL,
		Model:      m.EmbeddingModel,
		Dimensions: m.EmbeddingDimensions,
		Provider:   m.Provider,
		Logger:     logger,
		Limiter:    limiter,
	})

	var embedder domain.Embedder = base

	// Pass an untyped nil when there is no KV store: a typed nil pointer
	// would look like a usable store to the cache.
	var kvStore embcache.Store
	if kv != nil {
		kvStore = kv
	}
	cached, err := embcache.New(base, kvStore, embcache.Options{
		Model:      m.EmbeddingModel,
		MemorySize: cfg.Retrieval.CacheSize,
		TTL:        time.Duration(cfg.Retrieval.CacheTTLSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, logger)
	if err != nil {
		logger.Warn("Embedding cache disabled", zap.Error(err))
	} else {
		embedder = cached
	}

	return provider.NewInstrumentedEmbedder(embedder, m.Provider, m.EmbeddingModel)
}

// buildRouter wires the classifier and one handler per intent.
func buildRouter(cfg *config.Config, store *chunkStore, models modelSet) (*router.Router, error) {
	finderAgent := finder.New(store.chunks, models.query, finder.Options{
		CandidateLimit: cfg.Retrieval.CandidateLimit,
		ResultLimit:    cfg.Retrieval.ResultLimit,
		Weights: fusion.Weights{
			Lexical:  cfg.Retrieval.LexicalWeight,
			Semantic: cfg.Retrieval.SemanticWeight,
		},
		SnippetLength: cfg.Retrieval.SnippetLength,
	})

	rt, err := router.New(classify.New(models.classifier), router.Handlers{
		Find:     finderAgent,
		Explain:  assist.NewExplainer(models.explainer),
		Generate: assist.NewGenerator(models.generator),
		Other:    router.HandlerFunc(assist.OutOfScope),
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return rt, nil
}
