package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Sentinel errors for configuration validation failures. All of them are
// fatal at startup.
var (
	// ErrMissingModelPath is returned when a required model path is empty.
	ErrMissingModelPath = errors.New("model path can not be empty")
	// ErrNotFound is returned when the config file does not exist.
	ErrNotFound = errors.New("config file not found")
)

// Config holds the settings for ingestion, retrieval and calibration.
// It maps to the [grounder] table of the TOML config file; the rest of the
// file is opaque to this package and preserved on rewrite.
type Config struct {
	// EmbeddingModel is the model name or path served by the embedding endpoint.
	EmbeddingModel string `toml:"embedding_model"`
	// EmbeddingBaseURL is the base URL of the embedding HTTP service.
	EmbeddingBaseURL string `toml:"embedding_base_url"`
	// Embedder selects the embedding client flavor: "openai" or "ollama".
	Embedder string `toml:"embedder"`
	// RerankerModel is the cross-encoder model name or path served by the rerank endpoint.
	RerankerModel string `toml:"reranker_model"`
	// RerankerBaseURL is the base URL of the rerank HTTP service.
	RerankerBaseURL string `toml:"reranker_base_url"`
	// RejectThrottle is the calibrated similarity threshold below which a
	// question is considered out of domain. Written by the calibrator.
	RejectThrottle float64 `toml:"reject_throttle"`
	// IndexBackend selects the vector index implementation: "local" or "qdrant".
	IndexBackend string `toml:"index_backend"`
	// QdrantURL is the Qdrant endpoint, used when IndexBackend is "qdrant".
	QdrantURL string `toml:"qdrant_url"`
	// VectorSize is the embedding dimension. Must match the embedding model output.
	VectorSize int `toml:"vector_size"`
	// IngestWorkers bounds document-level parallelism during ingestion.
	IngestWorkers int `toml:"ingest_workers"`

	// APIKey authenticates against the embedding/rerank endpoints. Env only,
	// never persisted.
	APIKey string `toml:"-"`
}

// fileConfig is the on-disk shape. Only the grounder table is interpreted.
type fileConfig struct {
	Grounder Config `toml:"grounder"`
}

// Load reads the TOML config at path, applies environment overrides and
// validates required fields. A .env file next to the config is loaded first;
// variables already set in the environment take precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := fc.Grounder

	// Env overrides for endpoint wiring; the file keeps only durable settings.
	if v := os.Getenv("GROUNDER_EMBEDDING_BASE_URL"); v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v := os.Getenv("GROUNDER_RERANKER_BASE_URL"); v != "" {
		cfg.RerankerBaseURL = v
	}
	if v := os.Getenv("GROUNDER_QDRANT_URL"); v != "" {
		cfg.QdrantURL = v
	}
	cfg.APIKey = os.Getenv("GROUNDER_API_KEY")

	applyDefaults(&cfg)

	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("%w: embedding_model", ErrMissingModelPath)
	}
	if cfg.RerankerModel == "" {
		return nil, fmt.Errorf("%w: reranker_model", ErrMissingModelPath)
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("vector_size must be greater than 0, got %d", cfg.VectorSize)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = "http://localhost:8081"
	}
	if cfg.Embedder == "" {
		cfg.Embedder = "openai"
	}
	if cfg.RerankerBaseURL == "" {
		cfg.RerankerBaseURL = "http://localhost:8082"
	}
	if cfg.IndexBackend == "" {
		cfg.IndexBackend = "local"
	}
	if cfg.QdrantURL == "" {
		cfg.QdrantURL = "http://localhost:6333"
	}
	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = 4
	}
}

// SetRejectThrottle rewrites only the reject_throttle key of the config file,
// preserving every other table and key verbatim. The write is atomic: a temp
// file in the same directory is renamed over the original.
func SetRejectThrottle(path string, throttle float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	table, ok := raw["grounder"].(map[string]any)
	if !ok {
		table = make(map[string]any)
		raw["grounder"] = table
	}
	table["reject_throttle"] = throttle

	out, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
