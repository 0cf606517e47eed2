// Package stub provides deterministic, network-free model capabilities used
// when no provider API key is configured.
package stub

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/taskpilot/internal/domain"
	"github.com/kailas-cloud/taskpilot/internal/domain/intent"
)

// KeywordClassifier answers classification prompts from keywords in the user
// message (English and German stems).
type KeywordClassifier struct{}

// Complete implements domain.Completer.
func (KeywordClassifier) Complete(_ context.Context, _, user string) (string, error) {
	text := strings.ToLower(user)
	switch {
	case strings.Contains(text, "explain") || strings.Contains(text, "erkl"):
		return intent.Explain.String(), nil
	case strings.Contains(text, "generate") || strings.Contains(text, "erstellen") || strings.Contains(text, "create"):
		return intent.Generate.String(), nil
	default:
		return intent.Find.String(), nil
	}
}

// Prefixed echoes the user message behind a fixed prefix.
type Prefixed struct {
	Prefix string
}

// Complete implements domain.Completer.
func (p Prefixed) Complete(_ context.Context, _, user string) (string, error) {
	return p.Prefix + " " + strings.TrimSpace(user), nil
}

// Mock responders for the explanation and generation handlers.
var (
	MockExplanation = Prefixed{Prefix: "[Mock Explanation]"}
	MockGeneration  = Prefixed{Prefix: "[Mock Generation]"}
)

// HashEmbedder maps text to an L2-normalized bag-of-words vector using the
// hashing trick. Equal texts always yield equal vectors.
type HashEmbedder struct {
	Dimensions int
}

// Embed implements domain.Embedder.
func (h HashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = 256
	}
	vec := make([]float32, dims)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}
