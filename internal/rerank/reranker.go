// Package rerank defines the cross-encoder reranking capability used to
// re-score coarse retrieval candidates.
package rerank

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_reranker.go -package=mocks grounder/internal/rerank Reranker

import (
	"context"

	"grounder/internal/vectorindex"
)

// Reranker scores (query, candidate) pairs together and returns a reduced,
// reordered subset. Cross-encoder scoring is slower than vector search but
// markedly more precise when the coarse candidates have similar scores.
type Reranker interface {
	// Rerank returns at most topN candidates ordered by descending relevance,
	// with scores replaced by the cross-encoder's relevance scores.
	Rerank(ctx context.Context, query string, candidates []vectorindex.ScoredHit, topN int) ([]vectorindex.ScoredHit, error)
}
