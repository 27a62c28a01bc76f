package retrieval

import (
	"context"
	"strings"

	"grounder/internal/contextutil"
	"grounder/internal/rerank"
	"grounder/internal/vectorindex"
)

const (
	// responseSearchK is the coarse candidate count from the response index.
	responseSearchK = 30
	// responseScoreThreshold filters coarse candidates before reranking.
	responseScoreThreshold = 0.2
	// rerankTopN is the number of candidates kept after reranking.
	rerankTopN = 3

	// DefaultContextMaxLength is the context budget used when the caller
	// does not specify one.
	DefaultContextMaxLength = 16000
)

// Result is the outcome of an accepted query: the newline-joined retrieved
// chunk contents and the assembled grounding context, plus the deduplicated
// source paths for attribution. Chunks and Context are always set together.
type Result struct {
	Chunks  string
	Context string
	Sources []string
}

// Pipeline orchestrates the rejection gate, two-stage retrieval and context
// assembly. It is read-only against built indexes and safe for concurrent
// queries.
type Pipeline struct {
	gate      *Gate
	response  vectorindex.Index
	reranker  rerank.Reranker
	assembler *Assembler
	threshold float64
}

// NewPipeline creates a query pipeline. threshold is the calibrated reject
// throttle from configuration.
func NewPipeline(gate *Gate, response vectorindex.Index, reranker rerank.Reranker, threshold float64) *Pipeline {
	return &Pipeline{
		gate:      gate,
		response:  response,
		reranker:  reranker,
		assembler: NewAssembler(),
		threshold: threshold,
	}
}

// Query answers a question with grounding material. A nil Result with nil
// error is the defined "no answer" outcome: the question was empty or
// rejected as out of domain. Capability failures return an error instead;
// they are never conflated with a reject decision.
func (p *Pipeline) Query(ctx context.Context, question string, contextMaxLength int) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(question) < 1 {
		return nil, nil
	}
	if contextMaxLength <= 0 {
		contextMaxLength = DefaultContextMaxLength
	}

	rejected, _, err := p.gate.Decide(ctx, question, p.threshold, false)
	if err != nil {
		return nil, err
	}
	if rejected {
		logger.InfoContext(ctx, "question rejected", "question", question, "threshold", p.threshold)
		return nil, nil
	}

	candidates, err := p.response.Search(ctx, question, responseSearchK, responseScoreThreshold)
	if err != nil {
		return nil, err
	}

	hits, err := p.reranker.Rerank(ctx, question, candidates, rerankTopN)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(hits))
	var sources []string
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, hit.Chunk.Content)
		if _, ok := seen[hit.Chunk.Source]; !ok {
			seen[hit.Chunk.Source] = struct{}{}
			sources = append(sources, hit.Chunk.Source)
		}
	}

	assembled, err := p.assembler.Assemble(hits, contextMaxLength)
	if err != nil {
		return nil, err
	}

	if len(sources) > 0 {
		logger.DebugContext(ctx, "query answered", "question", question, "top_source", sources[0], "hits", len(hits))
	}
	return &Result{
		Chunks:  strings.Join(chunks, "\n"),
		Context: assembled,
		Sources: sources,
	}, nil
}
