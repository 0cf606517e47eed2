package fusion

import (
	"math"
	"testing"

	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
)

const eps = 1e-9

func lex(task string, score float64) taskdoc.Document {
	return taskdoc.Lexical(task, "", "https://docs/"+task, "", "content-"+task, score)
}

func sem(task string, score float64) taskdoc.Document {
	return taskdoc.Semantic(task, "", "https://docs/"+task, "", "content-"+task, score)
}

func names(results []Ranked) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document().TaskName()
	}
	return out
}

func TestFuse_Scenario(t *testing.T) {
	lexical := []taskdoc.Document{lex("a", 0.8), lex("b", 0.6)}
	semantic := []taskdoc.Document{sem("b", 0.9), sem("c", 0.7)}

	results := Fuse(lexical, semantic, DefaultWeights, 5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	want := []struct {
		task     string
		combined float64
	}{
		{"b", 0.85},
		{"a", 0.6},
		{"c", 0.4 * 0.7 / 0.9},
	}
	for i, w := range want {
		r := results[i]
		if r.Document().TaskName() != w.task {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, r.Document().TaskName(), w.task, names(results))
		}
		if math.Abs(r.Combined()-w.combined) > eps {
			t.Errorf("%s combined = %f, want %f", w.task, r.Combined(), w.combined)
		}
	}
	if math.Abs(results[2].Combined()-0.311) > 0.001 {
		t.Errorf("c combined = %f, want ~0.311", results[2].Combined())
	}
}

func TestFuse_EmptyInputs(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		results := Fuse(nil, nil, DefaultWeights, 5)
		if results == nil || len(results) != 0 {
			t.Fatalf("expected empty non-nil slice, got %v", results)
		}
	})

	t.Run("semantic empty", func(t *testing.T) {
		results := Fuse([]taskdoc.Document{lex("a", 4), lex("b", 2)}, nil, DefaultWeights, 5)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for _, r := range results {
			want := DefaultWeights.Lexical * r.Lexical()
			if math.Abs(r.Combined()-want) > eps {
				t.Errorf("%s combined = %f, want %f", r.Document().TaskName(), r.Combined(), want)
			}
			if r.Semantic() != 0 {
				t.Errorf("%s semantic = %f, want 0", r.Document().TaskName(), r.Semantic())
			}
		}
	})

	t.Run("lexical empty", func(t *testing.T) {
		results := Fuse(nil, []taskdoc.Document{sem("a", 0.5)}, DefaultWeights, 5)
		if len(results) != 1 || math.Abs(results[0].Combined()-0.4) > eps {
			t.Fatalf("unexpected results %v", names(results))
		}
	})
}

func TestFuse_NonPositiveScores(t *testing.T) {
	results := Fuse([]taskdoc.Document{lex("a", 0), lex("b", 0)}, nil, DefaultWeights, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Combined() != 0 {
			t.Errorf("%s combined = %f, want 0", r.Document().TaskName(), r.Combined())
		}
	}
	// Equal scores fall back to identity key order.
	if names(results)[0] != "a" {
		t.Errorf("expected a first, got %v", names(results))
	}
}

func TestFuse_MergesByIdentityKeyWithMax(t *testing.T) {
	dup := taskdoc.Lexical("A", "Other heading", "HTTPS://DOCS/a", "", "other", 0.4)
	lexical := []taskdoc.Document{lex("a", 0.8), dup, lex("b", 0.2)}

	results := Fuse(lexical, []taskdoc.Document{sem("a", 0.3)}, DefaultWeights, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results after merge, got %v", names(results))
	}
	a := results[0]
	if a.Document().Content() != "content-a" {
		t.Errorf("expected first-seen document kept, got %q", a.Document().Content())
	}
	if math.Abs(a.Lexical()-1.0) > eps {
		t.Errorf("lexical = %f, want max 1.0 (not a sum)", a.Lexical())
	}
	if math.Abs(a.Combined()-(0.6+0.4)) > eps {
		t.Errorf("combined = %f, want 1.0", a.Combined())
	}
}

func TestFuse_Limit(t *testing.T) {
	lexical := []taskdoc.Document{lex("a", 5), lex("b", 4), lex("c", 3), lex("d", 2), lex("e", 1), lex("f", 0.5)}

	if got := Fuse(lexical, nil, DefaultWeights, 5); len(got) != 5 {
		t.Errorf("limit 5: got %d", len(got))
	}
	if got := Fuse(lexical, nil, DefaultWeights, 0); len(got) != 0 {
		t.Errorf("limit 0: got %d", len(got))
	}
	if got := Fuse(lexical, nil, DefaultWeights, -1); len(got) != 0 {
		t.Errorf("limit -1: got %d", len(got))
	}
}

func TestFuse_TieBreakByIdentityKey(t *testing.T) {
	lexical := []taskdoc.Document{lex("zeta", 1), lex("alpha", 1), lex("mid", 1)}
	got := names(Fuse(lexical, nil, DefaultWeights, 5))
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFuse_Idempotent(t *testing.T) {
	lexical := []taskdoc.Document{lex("a", 3), lex("b", 3), lex("c", 1)}
	semantic := []taskdoc.Document{sem("c", 0.9), sem("d", 0.9)}

	first := Fuse(lexical, semantic, DefaultWeights, 5)
	second := Fuse(lexical, semantic, DefaultWeights, 5)
	if len(first) != len(second) {
		t.Fatalf("length differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Document().IdentityKey() != second[i].Document().IdentityKey() ||
			first[i].Combined() != second[i].Combined() {
			t.Errorf("position %d differs: %v vs %v", i, names(first), names(second))
		}
	}
}

func TestFuse_Monotonic(t *testing.T) {
	base := []taskdoc.Document{lex("a", 0.8), lex("b", 0.5)}
	raised := []taskdoc.Document{lex("a", 0.8), lex("b", 0.7)}
	semantic := []taskdoc.Document{sem("a", 0.2), sem("b", 0.9)}

	score := func(results []Ranked, task string) float64 {
		for _, r := range results {
			if r.Document().TaskName() == task {
				return r.Combined()
			}
		}
		t.Fatalf("task %s missing", task)
		return 0
	}

	before := score(Fuse(base, semantic, DefaultWeights, 5), "b")
	after := score(Fuse(raised, semantic, DefaultWeights, 5), "b")
	if after < before {
		t.Errorf("raising b's lexical score lowered its combined score: %f -> %f", before, after)
	}
}

func TestFuse_ScoresInUnitRange(t *testing.T) {
	lexical := []taskdoc.Document{lex("a", 12.5), lex("b", 3.1), lex("c", 0.2)}
	semantic := []taskdoc.Document{sem("b", 0.77), sem("d", 0.31)}

	for _, r := range Fuse(lexical, semantic, DefaultWeights, 10) {
		if r.Lexical() < 0 || r.Lexical() > 1 || r.Semantic() < 0 || r.Semantic() > 1 {
			t.Errorf("%s contributions out of range: %f/%f", r.Document().TaskName(), r.Lexical(), r.Semantic())
		}
		if r.Combined() < 0 || r.Combined() > DefaultWeights.Lexical+DefaultWeights.Semantic+eps {
			t.Errorf("%s combined out of range: %f", r.Document().TaskName(), r.Combined())
		}
	}
}
