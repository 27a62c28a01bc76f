package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"grounder/internal/calibrate"
	"grounder/internal/config"
	"grounder/internal/contextutil"
	"grounder/internal/embed"
	"grounder/internal/ingest"
	"grounder/internal/retrieval"
)

func newCalibrateCmd() *cobra.Command {
	var (
		goodQuestions string
		badQuestions  string
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Recompute the rejection threshold from labeled questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextutil.WithLogger(cmd.Context(), slog.Default().With("op", "calibrate"))

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			good, err := loadQuestions(goodQuestions)
			if err != nil {
				return err
			}
			bad, err := loadQuestions(badQuestions)
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

			calibrator := calibrate.New(retrieval.NewGate(reject), flagConfig)
			threshold, err := calibrator.Calibrate(ctx, good, bad)
			if err != nil {
				return err
			}
			fmt.Printf("optimal reject throttle: %.6f (saved to %s)\n", threshold, flagConfig)
			return nil
		},
	}

	cmd.Flags().StringVar(&goodQuestions, "good-questions", "resource/good_questions.json", "JSON file of in-domain example questions")
	cmd.Flags().StringVar(&badQuestions, "bad-questions", "resource/bad_questions.json", "JSON file of out-of-domain example questions")
	return cmd
}
