package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxContentSize is the maximum chunk content size in bytes.
const MaxContentSize = 163840 // 160KB

// Chunk is a stored documentation fragment (immutable value object).
type Chunk struct {
	id       string
	taskName string
	heading  string
	url      string
	anchor   string
	content  string
	vector   []float32
}

// New validates and creates a Chunk. The ID is derived from the fragment
// identity so re-ingesting the same fragment overwrites it.
func New(taskName, heading, url, anchor, content string) (Chunk, error) {
	taskName = strings.TrimSpace(taskName)
	content = strings.TrimSpace(content)
	if taskName == "" {
		return Chunk{}, fmt.Errorf("task name is required")
	}
	if content == "" {
		return Chunk{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Chunk{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}

	c := Chunk{
		taskName: taskName,
		heading:  strings.TrimSpace(heading),
		url:      strings.TrimSpace(url),
		anchor:   strings.TrimSpace(anchor),
		content:  content,
	}
	c.id = idFor(c.taskName, c.url, c.anchor)
	return c, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id, taskName, heading, url, anchor, content string, vector []float32) Chunk {
	return Chunk{
		id: id, taskName: taskName, heading: heading, url: url,
		anchor: anchor, content: content, vector: vector,
	}
}

// ID returns the storage identifier.
func (c *Chunk) ID() string { return c.id }

// TaskName returns the documented task name.
func (c *Chunk) TaskName() string { return c.taskName }

// Heading returns the section heading.
func (c *Chunk) Heading() string { return c.heading }

// URL returns the source page URL.
func (c *Chunk) URL() string { return c.url }

// Anchor returns the in-page anchor.
func (c *Chunk) Anchor() string { return c.anchor }

// Content returns the fragment text.
func (c *Chunk) Content() string { return c.content }

// Vector returns the embedding vector, nil when not embedded.
func (c *Chunk) Vector() []float32 { return c.vector }

// EmbeddingText is the text sent to the embedder: heading and content.
func (c *Chunk) EmbeddingText() string {
	if c.heading == "" {
		return c.taskName + "\n" + c.content
	}
	return c.taskName + " - " + c.heading + "\n" + c.content
}

// WithVector returns a copy with the given vector set.
func (c *Chunk) WithVector(v []float32) Chunk {
	out := *c
	out.vector = v
	return out
}

func idFor(taskName, url, anchor string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(taskName + "|" + url + "|" + anchor)))
	return hex.EncodeToString(sum[:8])
}
