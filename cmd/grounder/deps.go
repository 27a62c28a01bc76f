package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"grounder/internal/config"
	"grounder/internal/embed"
	"grounder/internal/ingest"
	"grounder/internal/rerank"
	"grounder/internal/vectorindex"
)

// newEmbedder constructs the embedding client selected by configuration.
func newEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.Embedder == "ollama" {
		return embed.NewOllamaClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.VectorSize)
	}
	return embed.NewOpenAIClient(cfg.EmbeddingBaseURL, cfg.APIKey, cfg.EmbeddingModel, cfg.VectorSize)
}

// newReranker constructs the cross-encoder rerank client.
func newReranker(cfg *config.Config) *rerank.Client {
	return rerank.NewClient(cfg.RerankerBaseURL, cfg.APIKey, cfg.RerankerModel)
}

// indexFactory returns a factory creating fresh indexes for the configured
// backend. Qdrant collections are named after the index directory so the two
// indexes never collide.
func indexFactory(cfg *config.Config, embedder embed.Embedder) ingest.IndexFactory {
	return func(ctx context.Context, dir string, strategy vectorindex.Strategy) (vectorindex.Index, error) {
		if cfg.IndexBackend == "qdrant" {
			return vectorindex.NewQdrant(ctx, cfg.QdrantURL, filepath.Base(dir), strategy, embedder, dir)
		}
		return vectorindex.NewLocal(dir, strategy, embedder), nil
	}
}

// openIndex opens a previously built index directory with the configured
// backend.
func openIndex(ctx context.Context, cfg *config.Config, dirName string, embedder embed.Embedder) (vectorindex.Index, error) {
	dir := filepath.Join(flagWorkDir, dirName)
	if cfg.IndexBackend == "qdrant" {
		return vectorindex.OpenQdrant(ctx, cfg.QdrantURL, dir, embedder)
	}
	return vectorindex.OpenLocal(dir, embedder)
}

// loadQuestions reads a JSON array of question strings.
func loadQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}
	var questions []string
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions file %s: %w", path, err)
	}
	return questions, nil
}
