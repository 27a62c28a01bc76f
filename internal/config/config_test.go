package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("minimal config with defaults", func(t *testing.T) {
		path := writeConfig(t, `
[grounder]
embedding_model = "bce-embedding-base"
reranker_model = "bce-reranker-base"
vector_size = 768
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "bce-embedding-base", cfg.EmbeddingModel)
		assert.Equal(t, "openai", cfg.Embedder)
		assert.Equal(t, "local", cfg.IndexBackend)
		assert.Equal(t, "http://localhost:8081", cfg.EmbeddingBaseURL)
		assert.Equal(t, "http://localhost:8082", cfg.RerankerBaseURL)
		assert.Equal(t, 4, cfg.IngestWorkers)
		assert.Zero(t, cfg.RejectThrottle)
	})

	t.Run("explicit values win over defaults", func(t *testing.T) {
		path := writeConfig(t, `
[grounder]
embedding_model = "m"
reranker_model = "r"
vector_size = 384
embedder = "ollama"
index_backend = "qdrant"
ingest_workers = 8
reject_throttle = 0.37
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "ollama", cfg.Embedder)
		assert.Equal(t, "qdrant", cfg.IndexBackend)
		assert.Equal(t, 8, cfg.IngestWorkers)
		assert.InDelta(t, 0.37, cfg.RejectThrottle, 1e-9)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("GROUNDER_EMBEDDING_BASE_URL", "http://embed.internal:9000")
		t.Setenv("GROUNDER_API_KEY", "secret")
		path := writeConfig(t, `
[grounder]
embedding_model = "m"
reranker_model = "r"
vector_size = 768
embedding_base_url = "http://file-value:1"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "http://embed.internal:9000", cfg.EmbeddingBaseURL)
		assert.Equal(t, "secret", cfg.APIKey)
	})

	t.Run("missing embedding model", func(t *testing.T) {
		path := writeConfig(t, `
[grounder]
reranker_model = "r"
vector_size = 768
`)
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrMissingModelPath)
	})

	t.Run("missing reranker model", func(t *testing.T) {
		path := writeConfig(t, `
[grounder]
embedding_model = "m"
vector_size = 768
`)
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrMissingModelPath)
	})

	t.Run("invalid vector size", func(t *testing.T) {
		path := writeConfig(t, `
[grounder]
embedding_model = "m"
reranker_model = "r"
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := writeConfig(t, `[grounder`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestSetRejectThrottle(t *testing.T) {
	path := writeConfig(t, `
title = "workspace settings"

[grounder]
embedding_model = "m"
reranker_model = "r"
vector_size = 768
reject_throttle = 0.1

[llm]
model = "internlm2-7b"
temperature = 0.4
`)

	require.NoError(t, SetRejectThrottle(path, 0.451))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, toml.Unmarshal(data, &raw))

	grounder, ok := raw["grounder"].(map[string]any)
	require.True(t, ok, "grounder table missing after rewrite")
	assert.InDelta(t, 0.451, grounder["reject_throttle"], 1e-9)
	assert.Equal(t, "m", grounder["embedding_model"])

	// Unrelated tables and top-level keys survive the rewrite.
	assert.Equal(t, "workspace settings", raw["title"])
	llm, ok := raw["llm"].(map[string]any)
	require.True(t, ok, "llm table missing after rewrite")
	assert.Equal(t, "internlm2-7b", llm["model"])
	assert.InDelta(t, 0.4, llm["temperature"], 1e-9)

	// The rewritten file still loads.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.451, cfg.RejectThrottle, 1e-9)
}

func TestSetRejectThrottleMissingTable(t *testing.T) {
	path := writeConfig(t, `title = "only top level"`)

	require.NoError(t, SetRejectThrottle(path, 0.2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, toml.Unmarshal(data, &raw))
	grounder, ok := raw["grounder"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.2, grounder["reject_throttle"], 1e-9)
}

func TestSetRejectThrottleMissingFile(t *testing.T) {
	err := SetRejectThrottle(filepath.Join(t.TempDir(), "absent.toml"), 0.3)
	assert.Error(t, err)
}
