package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient talks to a local Ollama server's native embeddings API.
type OllamaClient struct {
	baseURL      string
	model        string
	expectedSize int
	client       *http.Client
}

// NewOllamaClient creates an embeddings client for an Ollama server.
// baseURL defaults to the standard local endpoint when empty.
func NewOllamaClient(baseURL, model string, expectedSize int) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL:      baseURL,
		model:        model,
		expectedSize: expectedSize,
		client:       &http.Client{Timeout: 2 * time.Minute},
	}
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Dimension returns the configured vector size.
func (c *OllamaClient) Dimension() int { return c.expectedSize }

// Embed returns the vector for a single text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := ollamaEmbeddingRequest{Model: c.model, Prompt: text}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Embedding) != c.expectedSize {
		return nil, fmt.Errorf("embedding has size %d, expected %d", len(parsed.Embedding), c.expectedSize)
	}
	return parsed.Embedding, nil
}

// EmbedBatch embeds each text sequentially; the Ollama embeddings API takes
// one prompt per call.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		result[i] = vec
	}
	return result, nil
}

// Release drops pooled idle connections to the Ollama server.
func (c *OllamaClient) Release(ctx context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}
