// Package retrieval implements the query-time pipeline: the rejection gate,
// two-stage search with reranking, and bounded context assembly.
package retrieval

import (
	"context"

	"grounder/internal/vectorindex"
)

// rejectSearchK bounds the thresholded reject-index search.
const rejectSearchK = 20

// Gate decides whether a question is in-domain by comparing its best
// reject-index similarity against a calibrated threshold.
type Gate struct {
	reject vectorindex.Index
}

// NewGate creates a gate over the reject index.
func NewGate(reject vectorindex.Index) *Gate {
	return &Gate{reject: reject}
}

// Decide returns whether the question should be rejected, along with the
// scored hits that informed the decision. With disableThrottle set (used only
// during calibration) the single best raw-scored match is returned and no
// threshold applies. Otherwise the decision is an explicit comparison of the
// top score against threshold, independent of how the index filters its
// result set. Capability errors propagate; they are never reported as a
// reject decision.
func (g *Gate) Decide(ctx context.Context, question string, threshold float64, disableThrottle bool) (bool, []vectorindex.ScoredHit, error) {
	if disableThrottle {
		hits, err := g.reject.Search(ctx, question, 1, -1)
		if err != nil {
			return false, nil, err
		}
		return len(hits) == 0, hits, nil
	}

	hits, err := g.reject.Search(ctx, question, rejectSearchK, threshold)
	if err != nil {
		return false, nil, err
	}
	if len(hits) == 0 || hits[0].Score < threshold {
		return true, hits, nil
	}
	return false, hits, nil
}
