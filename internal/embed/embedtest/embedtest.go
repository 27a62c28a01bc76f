// Package embedtest provides a deterministic in-process embedder for tests.
package embedtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Hashed embeds text as a normalized bag-of-words vector: each word is hashed
// into a bucket and counts are L2-normalized. Texts sharing words score high
// under both cosine and inner-product similarity, which makes retrieval
// behavior testable without a model server.
type Hashed struct {
	Dim int
}

// NewHashed returns a hashed embedder with the given dimension.
func NewHashed(dim int) *Hashed {
	return &Hashed{Dim: dim}
}

// Embed implements embed.Embedder.
func (h *Hashed) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?()[]{}#*`\"'")
		if word == "" {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		vec[int(f.Sum32())%h.Dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch implements embed.Embedder.
func (h *Hashed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension implements embed.Embedder.
func (h *Hashed) Dimension() int { return h.Dim }
