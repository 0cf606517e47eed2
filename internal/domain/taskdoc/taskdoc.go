package taskdoc

import "strings"

// Document is one scored documentation fragment returned by a single search
// channel (immutable value object).
type Document struct {
	taskName      string
	heading       string
	url           string
	anchor        string
	content       string
	lexicalScore  float64
	semanticScore float64
}

// New creates a Document. Text fields are trimmed, negative scores clamp to 0.
func New(taskName, heading, url, anchor, content string, lexicalScore, semanticScore float64) Document {
	return Document{
		taskName:      strings.TrimSpace(taskName),
		heading:       strings.TrimSpace(heading),
		url:           strings.TrimSpace(url),
		anchor:        strings.TrimSpace(anchor),
		content:       strings.TrimSpace(content),
		lexicalScore:  nonNegative(lexicalScore),
		semanticScore: nonNegative(semanticScore),
	}
}

// Lexical creates a Document carrying only a lexical score.
func Lexical(taskName, heading, url, anchor, content string, score float64) Document {
	return New(taskName, heading, url, anchor, content, score, 0)
}

// Semantic creates a Document carrying only a semantic score.
func Semantic(taskName, heading, url, anchor, content string, score float64) Document {
	return New(taskName, heading, url, anchor, content, 0, score)
}

// TaskName returns the documented task name.
func (d Document) TaskName() string { return d.taskName }

// Heading returns the section heading, possibly empty.
func (d Document) Heading() string { return d.heading }

// URL returns the source page URL.
func (d Document) URL() string { return d.url }

// Anchor returns the in-page anchor, possibly empty.
func (d Document) Anchor() string { return d.anchor }

// Content returns the fragment text.
func (d Document) Content() string { return d.content }

// LexicalScore returns the raw keyword relevance score.
func (d Document) LexicalScore() float64 { return d.lexicalScore }

// SemanticScore returns the raw vector similarity score.
func (d Document) SemanticScore() float64 { return d.semanticScore }

// IdentityKey returns lowercase "taskName|url|anchor". Two documents with the
// same key are the same fragment.
func (d Document) IdentityKey() string {
	return strings.ToLower(d.taskName + "|" + d.url + "|" + d.anchor)
}

// Source returns "url#anchor", the bare url when there is no anchor, or "".
func (d Document) Source() string {
	if d.url == "" {
		return ""
	}
	if d.anchor == "" {
		return d.url
	}
	return d.url + "#" + d.anchor
}

// DistanceScore maps a vector distance d to the similarity 1/(1+d).
// Negative distances count as 0, so the result is in (0, 1].
func DistanceScore(d float64) float64 {
	if d < 0 || d != d {
		d = 0
	}
	return 1 / (1 + d)
}

func nonNegative(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}
