// Package vectorindex provides a named, persistable collection of
// (vector, chunk) entries with similarity search.
package vectorindex

import (
	"context"
	"errors"
	"math"

	"grounder/internal/chunker"
)

// ErrIndexNotFound is returned when an index directory does not exist.
// Callers should run ingestion before querying.
var ErrIndexNotFound = errors.New("index not found, run ingestion first")

// Strategy selects how similarity between vectors is scored.
type Strategy int

const (
	// StrategyCosine scores by cosine similarity remapped into [0,1] via
	// 0.5 + 0.5*cos. Used by the reject index so thresholds are comparable
	// across calibration runs.
	StrategyCosine Strategy = iota
	// StrategyInnerProduct scores by the raw inner product. Used by the
	// response index.
	StrategyInnerProduct
)

// String returns the persisted name of the strategy.
func (s Strategy) String() string {
	if s == StrategyInnerProduct {
		return "inner_product"
	}
	return "cosine"
}

// ParseStrategy maps a persisted strategy name back to its value.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "cosine":
		return StrategyCosine, nil
	case "inner_product":
		return StrategyInnerProduct, nil
	}
	return 0, errors.New("unknown strategy: " + name)
}

// Entry is a stored (vector, chunk) pair.
type Entry struct {
	ID     string
	Vector []float32
	Chunk  chunker.Chunk
}

// ScoredHit is a chunk returned by a similarity search together with its
// score. The score kind depends on the index strategy.
type ScoredHit struct {
	Chunk chunker.Chunk
	Score float64
}

// Index is a persistable vector collection. Implementations hold their
// embedder and embed query text themselves. Search results are ordered by
// descending score and filtered by threshold; pass a negative threshold to
// disable filtering. Indexes support concurrent readers once built.
type Index interface {
	Append(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query string, k int, threshold float64) ([]ScoredHit, error)
	Count() int
	Save(ctx context.Context) error
	Close() error
}

// score computes the similarity between two vectors under the strategy.
func score(strategy Strategy, a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if strategy == StrategyInnerProduct {
		return dot
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return 0.5 + 0.5*(dot/denom)
}
