// Package ingest builds the reject and response vector indexes from a
// markdown corpus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"grounder/internal/chunker"
	"grounder/internal/contextutil"
	"grounder/internal/corpus"
	"grounder/internal/embed"
	"grounder/internal/vectorindex"
)

// Index directory names under the working directory.
const (
	RejectIndexDir   = "db_reject"
	ResponseIndexDir = "db_response"
)

// ErrEmptyCorpus is returned when ingestion finds no documents or the corpus
// yields zero chunks. Fatal for the ingestion run.
var ErrEmptyCorpus = errors.New("corpus produced no documents or chunks")

// IndexFactory creates a fresh, empty index rooted at dir. It lets the
// builder stay agnostic of the index backend.
type IndexFactory func(ctx context.Context, dir string, strategy vectorindex.Strategy) (vectorindex.Index, error)

// Builder populates the two indexes from the same staged document set:
// the reject index from raw chunks, the response index from cleaned ones.
type Builder struct {
	repoDir  string
	workDir  string
	embedder embed.Embedder
	splitter *chunker.Splitter
	newIndex IndexFactory
	workers  int
}

// NewBuilder creates an ingestion builder. workers bounds document-level
// parallelism; values below 1 fall back to sequential processing.
func NewBuilder(repoDir, workDir string, embedder embed.Embedder, newIndex IndexFactory, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		repoDir:  repoDir,
		workDir:  workDir,
		embedder: embedder,
		splitter: chunker.NewSplitter(),
		newIndex: newIndex,
		workers:  workers,
	}
}

// Build stages the corpus and rebuilds both indexes from scratch. Any error
// aborts the whole run; index directories are recreated up front so a failed
// rebuild never leaves a stale half-built index behind.
func (b *Builder) Build(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	stagingDir, err := corpus.Stage(ctx, b.repoDir, b.workDir)
	if err != nil {
		return err
	}
	docs, err := corpus.LoadStaged(ctx, stagingDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyCorpus, b.repoDir)
	}

	logger.InfoContext(ctx, "building response index", "documents", len(docs))
	if err := b.buildIndex(ctx, ResponseIndexDir, vectorindex.StrategyInnerProduct, docs, true); err != nil {
		return fmt.Errorf("response index: %w", err)
	}

	logger.InfoContext(ctx, "building reject index", "documents", len(docs))
	if err := b.buildIndex(ctx, RejectIndexDir, vectorindex.StrategyCosine, docs, false); err != nil {
		return fmt.Errorf("reject index: %w", err)
	}
	return nil
}

// buildIndex chunks, embeds and appends every document into a fresh index.
// Documents are processed in parallel; all chunks derived from one document
// are appended as a single batch.
func (b *Builder) buildIndex(ctx context.Context, dirName string, strategy vectorindex.Strategy, docs []corpus.Document, clean bool) error {
	logger := contextutil.LoggerFromContext(ctx)

	dir := filepath.Join(b.workDir, dirName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear index directory: %w", err)
	}

	idx, err := b.newIndex(ctx, dir, strategy)
	if err != nil {
		return err
	}
	defer func() {
		_ = idx.Close()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, doc := range docs {
		g.Go(func() error {
			text := doc.Text
			if clean {
				text = chunker.Clean(text)
				if len(text) <= 1 {
					logger.DebugContext(gctx, "document empty after cleaning", "source", doc.SourcePath)
					return nil
				}
			}

			chunks := b.splitter.SplitHeaderAware(gctx, text, doc.SourcePath)
			if len(chunks) == 0 {
				logger.WarnContext(gctx, "no chunks generated", "source", doc.SourcePath)
				return nil
			}

			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Content
			}
			vectors, err := b.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", doc.SourcePath, err)
			}
			if len(vectors) != len(chunks) {
				return fmt.Errorf("embedding count mismatch for %s: expected %d, got %d", doc.SourcePath, len(chunks), len(vectors))
			}

			entries := make([]vectorindex.Entry, len(chunks))
			for i, c := range chunks {
				entries[i] = vectorindex.Entry{
					ID:     uuid.New().String(),
					Vector: vectors[i],
					Chunk:  c,
				}
			}
			return idx.Append(gctx, entries)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if idx.Count() == 0 {
		return fmt.Errorf("%w: no chunks for %s", ErrEmptyCorpus, dirName)
	}
	if err := idx.Save(ctx); err != nil {
		return err
	}
	logger.InfoContext(ctx, "index built", "dir", dir, "entries", idx.Count())
	return nil
}
