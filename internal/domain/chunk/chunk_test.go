package chunk

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	c, err := New(" SqlExecutor ", "Parameters", "https://docs/sql", "params", " Runs SQL ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TaskName() != "SqlExecutor" {
		t.Errorf("TaskName() = %q", c.TaskName())
	}
	if c.Content() != "Runs SQL" {
		t.Errorf("Content() = %q", c.Content())
	}
	if len(c.ID()) != 16 {
		t.Errorf("ID() = %q, want 16 hex chars", c.ID())
	}
	if c.Vector() != nil {
		t.Error("Vector() should be nil for new chunk")
	}
}

func TestNew_StableID(t *testing.T) {
	a, _ := New("SqlExecutor", "A", "https://docs/sql", "params", "one")
	b, _ := New("sqlexecutor", "B", "HTTPS://docs/sql", "PARAMS", "two")
	if a.ID() != b.ID() {
		t.Errorf("same fragment got different IDs: %q vs %q", a.ID(), b.ID())
	}
	c, _ := New("SqlExecutor", "A", "https://docs/sql", "other", "one")
	if a.ID() == c.ID() {
		t.Error("different anchors must not share an ID")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		taskName string
		content  string
		wantErr  string
	}{
		{"missing task", " ", "x", "task name is required"},
		{"missing content", "t", "  ", "content is required"},
		{"too large", "t", strings.Repeat("a", MaxContentSize+1), "content too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.taskName, "", "", "", tt.content)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	c, _ := New("SqlExecutor", "", "", "", "Runs SQL")
	if c.EmbeddingText() != "SqlExecutor\nRuns SQL" {
		t.Errorf("EmbeddingText() = %q", c.EmbeddingText())
	}
	h, _ := New("SqlExecutor", "Parameters", "", "", "Runs SQL")
	if h.EmbeddingText() != "SqlExecutor - Parameters\nRuns SQL" {
		t.Errorf("EmbeddingText() = %q", h.EmbeddingText())
	}
}

func TestWithVector_Copies(t *testing.T) {
	c, _ := New("t", "", "", "", "x")
	v := c.WithVector([]float32{1, 2})
	if c.Vector() != nil {
		t.Error("WithVector mutated the receiver")
	}
	if len(v.Vector()) != 2 || v.ID() != c.ID() {
		t.Errorf("WithVector() = %+v", v)
	}
}
