package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/config"
	"github.com/kailas-cloud/taskpilot/internal/delivery"
	"github.com/kailas-cloud/taskpilot/internal/domain"
	logpkg "github.com/kailas-cloud/taskpilot/internal/logger"
	"github.com/kailas-cloud/taskpilot/internal/metrics"
	chiTransport "github.com/kailas-cloud/taskpilot/internal/transport/chi"
	"github.com/kailas-cloud/taskpilot/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/taskpilot/internal/usecase/health"
	"github.com/kailas-cloud/taskpilot/internal/usecase/ingest"
	"github.com/kailas-cloud/taskpilot/internal/version"
)

func main() {
	var ingestPath string
	var showVersion bool
	var reindex bool
	flags := pflag.NewFlagSet("taskpilot", pflag.ExitOnError)
	flags.StringVar(&ingestPath, "ingest", "", "load task chunks from a JSONL file and exit")
	flags.BoolVar(&reindex, "reindex", false, "rebuild the search index from stored chunks before starting")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting taskpilot",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("models_enabled", cfg.Models.Enabled()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterModelMetrics()
	metrics.RegisterChatMetrics()

	ctx := context.Background()
	store, err := openStore(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer store.close()

	if reindex {
		if err := store.reindex(ctx); err != nil {
			logger.Fatal("Reindex failed", zap.Error(err))
		}
		logger.Info("Search index rebuilt")
	}

	models := buildModels(&cfg, store.kv, logger)

	if ingestPath != "" {
		if err := runIngest(ctx, ingestPath, store, models.document, logger); err != nil {
			logger.Fatal("Ingestion failed", zap.Error(err))
		}
		return
	}

	rt, err := buildRouter(&cfg, store, models)
	if err != nil {
		logger.Fatal("Invalid router wiring", zap.Error(err))
	}

	registry := delivery.NewRegistry(delivery.Options{
		Buffer:        cfg.Chat.SubscriberBuffer,
		StreamTimeout: cfg.Chat.StreamTimeout(),
	}, logger)
	chatSvc := chat.New(rt, registry, cfg.Chat.RequestTimeout())

	healthSvc := healthuc.New(store.chunks, models.embeddingCheck, models.completionCheck)

	server := chiTransport.NewServer(chatSvc, registry, healthSvc,
		chiTransport.Options{Heartbeat: cfg.Chat.Heartbeat()}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	// Streams hold connections open; end them before draining the server.
	registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := chatSvc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Background requests cancelled", zap.Error(err))
	}

	logger.Info("Server stopped gracefully", zap.Int("undelivered_mailboxes", registry.Len()))
}

func runIngest(ctx context.Context, path string, store *chunkStore, embed domain.Embedder, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	svc := ingest.New(store.chunks, embed, ingest.Options{})
	rep, err := svc.LoadJSONL(logpkg.ContextWithLogger(ctx, logger), f)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	logger.Info("Ingestion finished",
		zap.String("file", path),
		zap.Int("read", rep.Read),
		zap.Int("stored", rep.Stored),
		zap.Int("skipped", rep.Skipped),
		zap.Int("unembedded", rep.Unembedded),
	)
	return nil
}
