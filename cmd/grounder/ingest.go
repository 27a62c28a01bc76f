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

func newIngestCmd() *cobra.Command {
	var (
		repoDir       string
		goodQuestions string
		badQuestions  string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the reject and response indexes from a markdown corpus",
		Long: "Stages markdown files from the repository directory, chunks and embeds\n" +
			"them, and rebuilds both vector indexes from scratch. When labeled\n" +
			"question files are given, the rejection threshold is calibrated and\n" +
			"persisted afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextutil.WithLogger(cmd.Context(), slog.Default().With("op", "ingest"))

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			embedder := newEmbedder(cfg)
			defer func() {
				_ = embed.Release(ctx, embedder)
			}()

			builder := ingest.NewBuilder(repoDir, flagWorkDir, embedder, indexFactory(cfg, embedder), cfg.IngestWorkers)
			if err := builder.Build(ctx); err != nil {
				return err
			}

			if goodQuestions == "" && badQuestions == "" {
				return nil
			}
			good, err := loadQuestions(goodQuestions)
			if err != nil {
				return err
			}
			bad, err := loadQuestions(badQuestions)
			if err != nil {
				return err
			}

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

	cmd.Flags().StringVar(&repoDir, "repo-dir", "repodir", "root directory of the markdown corpus")
	cmd.Flags().StringVar(&goodQuestions, "good-questions", "", "JSON file of in-domain example questions")
	cmd.Flags().StringVar(&badQuestions, "bad-questions", "", "JSON file of out-of-domain example questions")
	return cmd
}
