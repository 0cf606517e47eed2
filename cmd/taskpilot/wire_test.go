package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/config"
	"github.com/kailas-cloud/taskpilot/internal/domain/intent"
	"github.com/kailas-cloud/taskpilot/internal/transport/stub"
)

const testRecords = `{"task_name":"Update firmware","heading":"Steps","url":"https://docs.example/fw","anchor":"steps","content":"Download the firmware image and flash the controller."}
{"task_name":"Reset password","heading":"Overview","url":"https://docs.example/pw","anchor":"overview","content":"Open the account page and request a password reset link."}
`

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "taskpilot.db"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func openTestStore(t *testing.T, cfg *config.Config) *chunkStore {
	t.Helper()
	store, err := openStore(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(store.close)
	return store
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	store := openTestStore(t, cfg)

	if store.kv != nil {
		t.Error("sqlite driver must not expose a KV store")
	}
	if store.reindex == nil {
		t.Fatal("reindex not wired")
	}
	if err := store.reindex(context.Background()); err != nil {
		t.Errorf("reindex on empty store: %v", err)
	}
	if err := store.chunks.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "mongo"
	if _, err := openStore(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestBuildModels_NoAPIKeyUsesStubs(t *testing.T) {
	cfg := sqliteConfig(t)
	models := buildModels(cfg, nil, zap.NewNop())

	if _, ok := models.classifier.(stub.KeywordClassifier); !ok {
		t.Errorf("classifier: got %T", models.classifier)
	}
	if models.explainer != stub.MockExplanation || models.generator != stub.MockGeneration {
		t.Errorf("explainer/generator: got %T/%T", models.explainer, models.generator)
	}
	emb, ok := models.document.(stub.HashEmbedder)
	if !ok {
		t.Fatalf("document embedder: got %T", models.document)
	}
	if emb.Dimensions != cfg.Models.EmbeddingDimensions {
		t.Errorf("dimensions: got %d, want %d", emb.Dimensions, cfg.Models.EmbeddingDimensions)
	}
	if models.embeddingCheck != nil || models.completionCheck != nil {
		t.Error("stubs need no provider health checks")
	}
}

func TestBuildModels_SemanticDisabled(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Retrieval.DisableSemantic = true
	models := buildModels(cfg, nil, zap.NewNop())

	if models.document != nil || models.query != nil {
		t.Errorf("expected no embedders, got %T/%T", models.document, models.query)
	}
}

func TestWiring_IngestThenAnswer(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	store := openTestStore(t, cfg)
	models := buildModels(cfg, store.kv, zap.NewNop())

	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	if err := os.WriteFile(path, []byte(testRecords), 0o600); err != nil {
		t.Fatalf("write records: %v", err)
	}
	if err := runIngest(ctx, path, store, models.document, zap.NewNop()); err != nil {
		t.Fatalf("runIngest: %v", err)
	}
	if err := store.reindex(ctx); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	rt, err := buildRouter(cfg, store, models)
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}

	exec, err := rt.Orchestrate(ctx, "Which task covers the firmware image?")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if exec.Intent != intent.Find {
		t.Errorf("intent: got %s", exec.Intent)
	}
	if !strings.Contains(exec.Answer, "Update firmware") {
		t.Errorf("answer does not name the task: %q", exec.Answer)
	}

	exec, err = rt.Orchestrate(ctx, "Explain the password reset")
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if exec.Intent != intent.Explain || !strings.HasPrefix(exec.Answer, "[Mock Explanation]") {
		t.Errorf("unexpected explanation %+v", exec)
	}
}

func TestRunIngest_MissingFile(t *testing.T) {
	cfg := sqliteConfig(t)
	store := openTestStore(t, cfg)
	err := runIngest(context.Background(), filepath.Join(t.TempDir(), "none.jsonl"), store, nil, zap.NewNop())
	if err == nil {
		t.Error("expected error for missing file")
	}
}
