package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"grounder/internal/config"
	"grounder/internal/embed"
	"grounder/internal/ingest"
	"grounder/internal/retrieval"
)

func newCheckCmd() *cobra.Command {
	var sample string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run sample questions through the rejection gate",
		Long: "Reads a JSON array of questions and prints the accept/reject decision\n" +
			"for each under the currently calibrated threshold. Useful for spot-\n" +
			"checking a threshold after ingestion or recalibration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			questions, err := loadQuestions(sample)
			if err != nil {
				return err
			}

			embedder := newEmbedder(cfg)
			defer func() {
				_ = embed.Release(ctx, embedder)
			}()

			reject, err := openIndex(ctx, cfg, ingest.RejectIndexDir, embedder)
			if err != nil {
				return err
			}
			defer func() {
				_ = reject.Close()
			}()

			gate := retrieval.NewGate(reject)
			for _, question := range questions {
				rejected, hits, err := gate.Decide(ctx, question, cfg.RejectThrottle, false)
				if err != nil {
					return err
				}
				score := 0.0
				if len(hits) > 0 {
					score = hits[0].Score
				}
				if rejected {
					color.Red("reject  %.4f  %s", score, question)
				} else {
					color.Green("accept  %.4f  %s", score, question)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sample, "sample", "resource/sample_questions.json", "JSON file of questions to check")
	return cmd
}
