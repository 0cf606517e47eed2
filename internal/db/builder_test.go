package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return def
}

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx := mustBuild(t, NewIndex("taskpilot-chunks").
		Prefix("taskpilot:chunk:").
		Tag("task_key").
		WeightedText("task_name", 2).
		Text("heading").
		Text("content").
		VectorFlat("vector", 1536, DistanceCosine))

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 5 {
		t.Fatalf("fields count = %d, want 5", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] type = %v, want TAG", idx.Fields[0].Type)
	}
	if idx.Fields[1].TextWeight != 2 {
		t.Errorf("task_name weight = %v, want 2", idx.Fields[1].TextWeight)
	}
	v := idx.Fields[4]
	if v.VectorAlgo != VectorFlat || v.VectorDim != 1536 || v.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", v)
	}
}

func TestIndexBuilder_VectorHNSW(t *testing.T) {
	idx := mustBuild(t, NewIndex("hnsw-idx").
		Prefix("doc:").
		Text("content").
		VectorHNSW("vec", 768, DistanceL2, 32, 400))

	f := idx.Fields[1]
	if f.VectorAlgo != VectorHNSW {
		t.Errorf("algo = %q, want HNSW", f.VectorAlgo)
	}
	if f.VectorM != 32 || f.VectorEFConstruct != 400 {
		t.Errorf("M/EF = %d/%d, want 32/400", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("x"), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"vector without dim", NewIndex("idx").VectorFlat("v", 0, DistanceCosine), "positive DIM"},
		{"invalid characters", NewIndex("idx with spaces").Tag("x"), "invalid characters"},
		{"duplicate", NewIndex("idx").Text("a").Tag("a"), "duplicate field name"},
		{"negative weight", NewIndex("idx").WeightedText("a", -1), "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := mustBuild(t, NewIndex("my-idx").
		Prefix("doc:").
		Tag("cat").
		VectorFlat("vec", 512, DistanceCosine))

	want := "FT.CREATE my-idx ON HASH PREFIX 1 doc: SCHEMA cat TAG vec VECTOR FLAT"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"a", "taskpilot:chunks", "idx-1_b"} {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	for _, s := range []string{"", "a b", "idx*", "ü"} {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}
