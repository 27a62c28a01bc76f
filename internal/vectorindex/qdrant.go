package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/qdrant/go-client/qdrant"

	"grounder/internal/chunker"
	"grounder/internal/contextutil"
	"grounder/internal/embed"
)

// manifestFileName holds the collection binding inside the index directory.
// The vectors themselves live server-side.
const manifestFileName = "manifest.json"

type qdrantManifest struct {
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Strategy   string `json:"strategy"`
}

// QdrantIndex is an Index backed by a Qdrant collection. The index directory
// holds only a manifest binding it to its collection.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dir        string
	strategy   Strategy
	embedder   embed.Embedder
	count      atomic.Int64
}

// newQdrantClient connects to a Qdrant server given its HTTP URL; the gRPC
// port is derived from the HTTP port.
func newQdrantClient(urlStr string) (*qdrant.Client, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return client, nil
}

// NewQdrant creates a fresh Qdrant-backed index for building. Any existing
// collection with the same name is dropped so a rebuild never mixes stale and
// fresh entries.
func NewQdrant(ctx context.Context, urlStr, collection string, strategy Strategy, embedder embed.Embedder, dir string) (*QdrantIndex, error) {
	client, err := newQdrantClient(urlStr)
	if err != nil {
		return nil, err
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := client.DeleteCollection(ctx, collection); err != nil {
			return nil, fmt.Errorf("failed to drop stale collection: %w", err)
		}
	}

	distance := qdrant.Distance_Cosine
	if strategy == StrategyInnerProduct {
		distance = qdrant.Distance_Dot
	}
	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(embedder.Dimension()),
			Distance: distance,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
		dir:        dir,
		strategy:   strategy,
		embedder:   embedder,
	}, nil
}

// OpenQdrant binds to the collection recorded in the directory manifest.
// Returns ErrIndexNotFound when the manifest or collection is missing.
func OpenQdrant(ctx context.Context, urlStr, dir string, embedder embed.Embedder) (*QdrantIndex, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read index manifest: %w", err)
	}
	var manifest qdrantManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("corrupt index manifest: %w", err)
	}
	strategy, err := ParseStrategy(manifest.Strategy)
	if err != nil {
		return nil, fmt.Errorf("corrupt index manifest: %w", err)
	}
	if embedder != nil && embedder.Dimension() != manifest.Dimension {
		return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d", manifest.Dimension, embedder.Dimension())
	}

	client, err := newQdrantClient(urlStr)
	if err != nil {
		return nil, err
	}
	exists, err := client.CollectionExists(ctx, manifest.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection %s", ErrIndexNotFound, manifest.Collection)
	}

	return &QdrantIndex{
		client:     client,
		collection: manifest.Collection,
		dir:        dir,
		strategy:   strategy,
		embedder:   embedder,
	}, nil
}

// Append upserts a batch of entries as points carrying the chunk payload.
func (x *QdrantIndex) Append(ctx context.Context, entries []Entry) error {
	logger := contextutil.LoggerFromContext(ctx)
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"source":  e.Chunk.Source,
				"header":  e.Chunk.Header,
				"content": e.Chunk.Content,
			}),
		})
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", x.collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	x.count.Add(int64(len(entries)))
	return nil
}

// Search embeds the query and returns up to k hits ordered by descending
// score, filtered by threshold (negative threshold disables filtering).
// Cosine scores are remapped into [0,1] to match the local backend.
func (x *QdrantIndex) Search(ctx context.Context, query string, k int, threshold float64) ([]ScoredHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	qvec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(k)
	scored, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(qvec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]ScoredHit, 0, len(scored))
	for _, point := range scored {
		s := float64(point.Score)
		if x.strategy == StrategyCosine {
			s = 0.5 + 0.5*s
		}
		if threshold >= 0 && s < threshold {
			continue
		}
		hits = append(hits, ScoredHit{
			Chunk: chunkFromPayload(point.Payload),
			Score: s,
		})
	}
	return hits, nil
}

// Count returns the number of entries appended through this handle.
func (x *QdrantIndex) Count() int {
	return int(x.count.Load())
}

// Save writes the collection manifest into the index directory.
func (x *QdrantIndex) Save(ctx context.Context) error {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	manifest := qdrantManifest{
		Collection: x.collection,
		Dimension:  x.embedder.Dimension(),
		Strategy:   x.strategy.String(),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(x.dir, manifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}

// chunkFromPayload rebuilds the stored chunk from a point payload.
func chunkFromPayload(payload map[string]*qdrant.Value) chunker.Chunk {
	var c chunker.Chunk
	if v, ok := payload["source"]; ok {
		c.Source = v.GetStringValue()
	}
	if v, ok := payload["header"]; ok {
		c.Header = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		c.Content = v.GetStringValue()
	}
	return c
}
