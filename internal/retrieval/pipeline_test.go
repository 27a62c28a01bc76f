package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"grounder/internal/embed/embedtest"
	"grounder/internal/ingest"
	"grounder/internal/rerank/mocks"
	"grounder/internal/vectorindex"
)

// buildIndexes runs real ingestion over a small corpus and opens both indexes,
// so pipeline tests exercise the same chunk and index shapes production sees.
func buildIndexes(t *testing.T, emb *embedtest.Hashed) (reject, response *vectorindex.LocalIndex) {
	t.Helper()
	ctx := context.Background()

	repoDir := t.TempDir()
	workDir := t.TempDir()
	docs := map[string]string{
		"install.md": "# Install\n\nDownload the latest release archive, unpack it into the tools directory and run the setup script once.\n",
		"logging.md": "# Logging\n\nLog files rotate nightly and the retention window is configured in the settings file.\n",
	}
	for name, text := range docs {
		if err := os.WriteFile(filepath.Join(repoDir, name), []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	factory := func(_ context.Context, dir string, strategy vectorindex.Strategy) (vectorindex.Index, error) {
		return vectorindex.NewLocal(dir, strategy, emb), nil
	}
	if err := ingest.NewBuilder(repoDir, workDir, emb, factory, 2).Build(ctx); err != nil {
		t.Fatalf("Build: %v", err)
	}

	reject, err := vectorindex.OpenLocal(filepath.Join(workDir, ingest.RejectIndexDir), emb)
	if err != nil {
		t.Fatalf("open reject index: %v", err)
	}
	response, err = vectorindex.OpenLocal(filepath.Join(workDir, ingest.ResponseIndexDir), emb)
	if err != nil {
		t.Fatalf("open response index: %v", err)
	}
	return reject, response
}

// passthrough keeps the vector-search order and truncates to topN, standing in
// for a cross-encoder that agrees with the coarse ranking.
func passthrough(_ context.Context, _ string, candidates []vectorindex.ScoredHit, topN int) ([]vectorindex.ScoredHit, error) {
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

func TestPipelineQuery(t *testing.T) {
	ctx := context.Background()
	emb := embedtest.NewHashed(64)
	reject, response := buildIndexes(t, emb)

	t.Run("empty question yields no answer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		p := NewPipeline(NewGate(reject), response, mocks.NewMockReranker(ctrl), 0.3)

		res, err := p.Query(ctx, "", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res != nil {
			t.Errorf("expected nil result, got %+v", res)
		}
	})

	t.Run("rejected question yields no answer without reranking", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		// No Rerank expectation: the gate must short-circuit the pipeline.
		p := NewPipeline(NewGate(reject), response, mocks.NewMockReranker(ctrl), 0.99)

		res, err := p.Query(ctx, "how do I bake sourdough bread", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res != nil {
			t.Errorf("expected nil result for rejected question, got %+v", res)
		}
	})

	t.Run("accepted question returns grounded result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reranker := mocks.NewMockReranker(ctrl)
		reranker.EXPECT().
			Rerank(gomock.Any(), gomock.Any(), gomock.Any(), 3).
			DoAndReturn(passthrough)
		p := NewPipeline(NewGate(reject), response, reranker, 0.3)

		res, err := p.Query(ctx, "how do I install the release archive", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res == nil {
			t.Fatal("expected a grounded result")
		}
		if !strings.Contains(res.Chunks, "release archive") {
			t.Errorf("chunks should cover the install doc, got %q", res.Chunks)
		}
		if !strings.Contains(res.Context, "release archive") {
			t.Errorf("context should cover the install doc, got %q", res.Context)
		}
		if len(res.Sources) == 0 {
			t.Fatal("expected at least one source")
		}
		if !strings.Contains(res.Sources[0], "install") {
			t.Errorf("top source = %q, want the install doc", res.Sources[0])
		}
		if len(res.Context) > DefaultContextMaxLength {
			t.Errorf("context length %d exceeds default budget", len(res.Context))
		}
	})

	t.Run("sources are deduplicated in rank order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reranker := mocks.NewMockReranker(ctrl)
		reranker.EXPECT().
			Rerank(gomock.Any(), gomock.Any(), gomock.Any(), 3).
			DoAndReturn(func(_ context.Context, _ string, candidates []vectorindex.ScoredHit, _ int) ([]vectorindex.ScoredHit, error) {
				if len(candidates) == 0 {
					return nil, nil
				}
				// Duplicate the top candidate to simulate two chunks from
				// the same file surviving the rerank.
				return []vectorindex.ScoredHit{candidates[0], candidates[0]}, nil
			})
		p := NewPipeline(NewGate(reject), response, reranker, 0.3)

		res, err := p.Query(ctx, "how do I install the release archive", 0)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res == nil {
			t.Fatal("expected a result")
		}
		if len(res.Sources) != 1 {
			t.Errorf("sources = %v, want a single deduplicated entry", res.Sources)
		}
	})

	t.Run("small context budget is filled exactly", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reranker := mocks.NewMockReranker(ctrl)
		reranker.EXPECT().
			Rerank(gomock.Any(), gomock.Any(), gomock.Any(), 3).
			DoAndReturn(passthrough)
		p := NewPipeline(NewGate(reject), response, reranker, 0.3)

		const budget = 60
		res, err := p.Query(ctx, "how do I install the release archive", budget)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if res == nil {
			t.Fatal("expected a result")
		}
		// Every source file is longer than the budget, so the context is a
		// truncation that uses every available byte.
		if len(res.Context) != budget {
			t.Errorf("context length = %d, want exactly %d", len(res.Context), budget)
		}
	})

	t.Run("reranker failure propagates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reranker := mocks.NewMockReranker(ctrl)
		reranker.EXPECT().
			Rerank(gomock.Any(), gomock.Any(), gomock.Any(), 3).
			Return(nil, errors.New("rerank backend down"))
		p := NewPipeline(NewGate(reject), response, reranker, 0.3)

		if _, err := p.Query(ctx, "how do I install the release archive", 0); err == nil {
			t.Fatal("expected reranker error to propagate")
		}
	})
}
