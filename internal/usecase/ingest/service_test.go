package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	domchunk "github.com/kailas-cloud/taskpilot/internal/domain/chunk"
)

// --- Mocks ---

type mockRepo struct {
	mu      sync.Mutex
	batches [][]domchunk.Chunk
	err     error
}

func (m *mockRepo) Upsert(_ context.Context, chunks ...domchunk.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, chunks)
	return nil
}

func (m *mockRepo) all() []domchunk.Chunk {
	var out []domchunk.Chunk
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type mockEmbedder struct {
	fail string // texts containing this substring fail
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.fail != "" && strings.Contains(text, m.fail) {
		return domain.EmbeddingResult{}, errors.New("provider error")
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

// --- Tests ---

const sample = `{"task_name":"Reset router","heading":"Steps","url":"https://docs/r","anchor":"reset","content":"Hold the button."}

{"task_name":"Change password","content":"Open settings."}
not json
{"task_name":"","content":"missing task"}
{"task_name":"Export logs","content":"Zip archive."}
`

func TestLoadJSONL_StoresValidLines(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{}, Options{BatchSize: 2})

	rep, err := svc.LoadJSONL(context.Background(), strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Read != 5 || rep.Stored != 3 || rep.Skipped != 2 || rep.Unembedded != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(repo.batches) != 2 {
		t.Errorf("batches = %d, want 2 (2 + 1)", len(repo.batches))
	}
	for _, c := range repo.all() {
		if len(c.Vector()) != 2 {
			t.Errorf("%s: vector = %v", c.TaskName(), c.Vector())
		}
	}
	first := repo.all()[0]
	if first.Heading() != "Steps" || first.Anchor() != "reset" {
		t.Errorf("first chunk = %+v", first)
	}
}

func TestLoadJSONL_EmbeddingFailureKeepsChunk(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{fail: "Export"}, Options{})

	rep, err := svc.LoadJSONL(context.Background(), strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Stored != 3 || rep.Unembedded != 1 {
		t.Errorf("report = %+v", rep)
	}
	for _, c := range repo.all() {
		if c.TaskName() == "Export logs" && len(c.Vector()) != 0 {
			t.Error("failed embedding must leave the vector empty")
		}
	}
}

func TestLoadJSONL_NoEmbedder(t *testing.T) {
	repo := &mockRepo{}
	rep, err := New(repo, nil, Options{}).LoadJSONL(context.Background(), strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Stored != 3 || rep.Unembedded != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestLoadJSONL_StoreErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	repo := &mockRepo{err: boom}
	_, err := New(repo, nil, Options{}).LoadJSONL(context.Background(), strings.NewReader(sample))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestLoadJSONL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{fail: "Reset"}, Options{})

	if _, err := svc.LoadJSONL(ctx, strings.NewReader(sample)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(repo.batches) != 0 {
		t.Error("nothing should be stored after cancellation")
	}
}

func TestStore(t *testing.T) {
	repo := &mockRepo{}
	c, err := domchunk.New("Task", "", "", "", "body")
	if err != nil {
		t.Fatal(err)
	}
	rep, err := New(repo, &mockEmbedder{}, Options{}).Store(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Stored != 1 || len(repo.all()[0].Vector()) == 0 {
		t.Errorf("report = %+v", rep)
	}
}
