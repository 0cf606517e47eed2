// Package fusion merges lexical and semantic candidate lists into one ranked
// shortlist using per-channel max normalization and a weighted sum.
package fusion

import (
	"sort"

	"github.com/kailas-cloud/taskpilot/internal/domain/taskdoc"
)

// Weights are the per-channel contributions to the combined score.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights is the 60/40 lexical-first blend.
var DefaultWeights = Weights{Lexical: 0.6, Semantic: 0.4}

// Ranked is one fused result (immutable).
type Ranked struct {
	doc      taskdoc.Document
	lexical  float64
	semantic float64
	combined float64
}

// Document returns the first-seen document for the identity key.
func (r Ranked) Document() taskdoc.Document { return r.doc }

// Lexical returns the normalized lexical contribution in [0,1].
func (r Ranked) Lexical() float64 { return r.lexical }

// Semantic returns the normalized semantic contribution in [0,1].
func (r Ranked) Semantic() float64 { return r.semantic }

// Combined returns the weighted score used for ordering.
func (r Ranked) Combined() float64 { return r.combined }

type aggregate struct {
	doc      taskdoc.Document
	lexical  float64
	semantic float64
}

// Fuse normalizes each channel by its maximum positive score, merges
// candidates by identity key keeping the best contribution per channel, and
// returns at most limit results ordered by combined score descending, ties
// broken by identity key ascending.
func Fuse(lexical, semantic []taskdoc.Document, w Weights, limit int) []Ranked {
	if limit <= 0 {
		return []Ranked{}
	}

	maxLex := maxPositive(lexical, taskdoc.Document.LexicalScore)
	maxSem := maxPositive(semantic, taskdoc.Document.SemanticScore)

	merged := make(map[string]*aggregate, len(lexical)+len(semantic))
	entry := func(d taskdoc.Document) *aggregate {
		key := d.IdentityKey()
		a, ok := merged[key]
		if !ok {
			a = &aggregate{doc: d}
			merged[key] = a
		}
		return a
	}

	for _, d := range lexical {
		a := entry(d)
		a.lexical = max(a.lexical, normalize(d.LexicalScore(), maxLex))
	}
	for _, d := range semantic {
		a := entry(d)
		a.semantic = max(a.semantic, normalize(d.SemanticScore(), maxSem))
	}

	results := make([]Ranked, 0, len(merged))
	for _, a := range merged {
		results = append(results, Ranked{
			doc:      a.doc,
			lexical:  a.lexical,
			semantic: a.semantic,
			combined: w.Lexical*a.lexical + w.Semantic*a.semantic,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].combined != results[j].combined {
			return results[i].combined > results[j].combined
		}
		return results[i].doc.IdentityKey() < results[j].doc.IdentityKey()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func maxPositive(docs []taskdoc.Document, score func(taskdoc.Document) float64) float64 {
	var m float64
	for _, d := range docs {
		if s := score(d); s > m {
			m = s
		}
	}
	return m
}

func normalize(score, maxScore float64) float64 {
	if maxScore <= 0 || score <= 0 {
		return 0
	}
	return score / maxScore
}
