// Package embed defines the embedding capability consumed by the index and
// retrieval layers, with HTTP client implementations.
package embed

import "context"

// Embedder maps text to a fixed-length dense vector.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the length of every vector produced by this embedder.
	Dimension() int
}

// Releaser is implemented by capabilities that hold releasable resources
// (device memory, pooled connections). Callers invoke Release as scoped
// cleanup after each top-level operation, never mid-algorithm.
type Releaser interface {
	Release(ctx context.Context) error
}

// Release calls Release on every candidate that implements Releaser.
// The first error is returned; remaining candidates are still released.
func Release(ctx context.Context, candidates ...any) error {
	var first error
	for _, c := range candidates {
		if r, ok := c.(Releaser); ok {
			if err := r.Release(ctx); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
