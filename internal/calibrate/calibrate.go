// Package calibrate computes the optimal rejection threshold from labeled
// good/bad questions and persists it into configuration.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"grounder/internal/config"
	"grounder/internal/contextutil"
	"grounder/internal/retrieval"
)

// ErrInsufficientLabels is returned when either label set is empty; a
// precision-recall sweep is degenerate without both classes present.
var ErrInsufficientLabels = errors.New("good and bad question examples can not be empty")

// Calibrator scores labeled questions against the reject index and picks the
// threshold maximizing precision + recall.
type Calibrator struct {
	gate       *retrieval.Gate
	configPath string
}

// New creates a calibrator. The winning threshold is persisted into the
// config file at configPath, rewriting only the reject throttle field.
func New(gate *retrieval.Gate, configPath string) *Calibrator {
	return &Calibrator{gate: gate, configPath: configPath}
}

// Calibrate records the top-1 raw reject-index score of every labeled
// question (throttle disabled), sweeps candidate thresholds and persists the
// winner. Good questions should be accepted, bad ones rejected.
func (c *Calibrator) Calibrate(ctx context.Context, goodQuestions, badQuestions []string) (float64, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(goodQuestions) == 0 || len(badQuestions) == 0 {
		return 0, ErrInsufficientLabels
	}

	var labels []int
	var scores []float64
	record := func(question string, label int) error {
		_, hits, err := c.gate.Decide(ctx, question, -1, true)
		if err != nil {
			return fmt.Errorf("failed to score question %q: %w", question, err)
		}
		if len(hits) == 0 {
			return fmt.Errorf("reject index returned no hits for %q", question)
		}
		labels = append(labels, label)
		scores = append(scores, hits[0].Score)
		return nil
	}
	for _, q := range goodQuestions {
		if err := record(q, 1); err != nil {
			return 0, err
		}
	}
	for _, q := range badQuestions {
		if err := record(q, 0); err != nil {
			return 0, err
		}
	}

	threshold := optimalThreshold(labels, scores)

	if err := config.SetRejectThrottle(c.configPath, threshold); err != nil {
		return 0, fmt.Errorf("failed to persist threshold: %w", err)
	}
	logger.InfoContext(ctx, "calibrated rejection threshold",
		"threshold", threshold, "good", len(goodQuestions), "bad", len(badQuestions), "config", c.configPath)
	return threshold, nil
}

// optimalThreshold sweeps candidate thresholds and returns the first one
// maximizing precision + recall. Candidates are the midpoints between
// adjacent distinct scores, so a cleanly separable label set yields a
// threshold strictly between the two groups.
func optimalThreshold(labels []int, scores []float64) float64 {
	distinct := distinctSorted(scores)
	if len(distinct) == 1 {
		return distinct[0]
	}

	candidates := make([]float64, 0, len(distinct)-1)
	for i := 0; i < len(distinct)-1; i++ {
		candidates = append(candidates, (distinct[i]+distinct[i+1])/2)
	}

	best := candidates[0]
	bestSum := -1.0
	for _, t := range candidates {
		precision, recall := precisionRecallAt(labels, scores, t)
		if sum := precision + recall; sum > bestSum {
			bestSum = sum
			best = t
		}
	}
	return best
}

// precisionRecallAt evaluates the classifier "score >= t means accept"
// against the labels.
func precisionRecallAt(labels []int, scores []float64, t float64) (precision, recall float64) {
	var tp, fp, fn int
	for i, s := range scores {
		predicted := s >= t
		switch {
		case predicted && labels[i] == 1:
			tp++
		case predicted && labels[i] == 0:
			fp++
		case !predicted && labels[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	} else {
		precision = 1
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}

func distinctSorted(scores []float64) []float64 {
	out := append([]float64(nil), scores...)
	sort.Float64s(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[n-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}
