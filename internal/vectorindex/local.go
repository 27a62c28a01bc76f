package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"grounder/internal/chunker"
	"grounder/internal/contextutil"
	"grounder/internal/embed"
)

// dbFileName is the on-disk representation inside the index directory.
const dbFileName = "index.db"

// LocalIndex is an in-memory brute-force similarity index persisted to a
// SQLite file inside its directory. Built indexes support concurrent readers.
type LocalIndex struct {
	mu       sync.RWMutex
	dir      string
	strategy Strategy
	embedder embed.Embedder
	entries  []Entry
}

// NewLocal creates an empty local index rooted at dir. The directory is
// created on Save, not here.
func NewLocal(dir string, strategy Strategy, embedder embed.Embedder) *LocalIndex {
	return &LocalIndex{dir: dir, strategy: strategy, embedder: embedder}
}

// OpenLocal loads a previously saved index from dir. Returns ErrIndexNotFound
// when the directory or database file does not exist.
func OpenLocal(dir string, embedder embed.Embedder) (*LocalIndex, error) {
	path := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var strategyName string
	if err := db.QueryRow("SELECT value FROM index_meta WHERE key = 'strategy'").Scan(&strategyName); err != nil {
		return nil, fmt.Errorf("failed to read index strategy: %w", err)
	}
	strategy, err := ParseStrategy(strategyName)
	if err != nil {
		return nil, fmt.Errorf("corrupt index metadata: %w", err)
	}

	var dimStr string
	if err := db.QueryRow("SELECT value FROM index_meta WHERE key = 'dimension'").Scan(&dimStr); err != nil {
		return nil, fmt.Errorf("failed to read index dimension: %w", err)
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt index metadata: %w", err)
	}
	if embedder != nil && embedder.Dimension() != dim {
		return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d", dim, embedder.Dimension())
	}

	rows, err := db.Query("SELECT id, source, header, content, vector FROM entries ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to read index entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	idx := &LocalIndex{dir: dir, strategy: strategy, embedder: embedder}
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Chunk.Source, &e.Chunk.Header, &e.Chunk.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode vector for %s: %w", e.ID, err)
		}
		e.Vector = vec
		idx.entries = append(idx.entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return idx, nil
}

// Append adds a batch of entries. Each batch is appended atomically so
// parallel per-document producers never interleave partial states.
func (x *LocalIndex) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := x.embedder.Dimension()
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("entry %s has vector size %d, expected %d", e.ID, len(e.Vector), dim)
		}
	}
	x.mu.Lock()
	x.entries = append(x.entries, entries...)
	x.mu.Unlock()
	return nil
}

// Search embeds the query and returns up to k hits ordered by descending
// score, filtered by threshold (negative threshold disables filtering).
func (x *LocalIndex) Search(ctx context.Context, query string, k int, threshold float64) ([]ScoredHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	qvec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]ScoredHit, 0, len(x.entries))
	for _, e := range x.entries {
		s := score(x.strategy, qvec, e.Vector)
		if threshold >= 0 && s < threshold {
			continue
		}
		hits = append(hits, ScoredHit{Chunk: e.Chunk, Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored entries.
func (x *LocalIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Save persists all entries to the index directory, overwriting any prior
// contents at that location.
func (x *LocalIndex) Save(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	path := filepath.Join(x.dir, dbFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old index: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to create index database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	schema := []string{
		`CREATE TABLE index_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE entries (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			header TEXT,
			content TEXT NOT NULL,
			vector BLOB NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	dim := x.embedder.Dimension()
	meta := map[string]string{
		"strategy":  x.strategy.String(),
		"dimension": strconv.Itoa(dim),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO index_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}
	for _, e := range x.entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO entries (id, source, header, content, vector) VALUES (?, ?, ?, ?, ?)",
			e.ID, e.Chunk.Source, e.Chunk.Header, e.Chunk.Content, encodeVector(e.Vector),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	logger.InfoContext(ctx, "saved index", "dir", x.dir, "entries", len(x.entries), "strategy", x.strategy.String())
	return nil
}

// Close releases in-memory state. The on-disk representation is untouched.
func (x *LocalIndex) Close() error {
	x.mu.Lock()
	x.entries = nil
	x.mu.Unlock()
	return nil
}

// Chunks returns the stored chunks in insertion order. Used by tests and
// diagnostics.
func (x *LocalIndex) Chunks() []chunker.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]chunker.Chunk, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.Chunk
	}
	return out
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
