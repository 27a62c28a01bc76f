package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"grounder/internal/config"
	"grounder/internal/embed"
	"grounder/internal/ingest"
	"grounder/internal/retrieval"
)

func newQueryCmd() *cobra.Command {
	var maxContext int

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Retrieve grounding context for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			embedder := newEmbedder(cfg)
			reranker := newReranker(cfg)
			defer func() {
				_ = embed.Release(ctx, embedder, reranker)
			}()

			reject, err := openIndex(ctx, cfg, ingest.RejectIndexDir, embedder)
			if err != nil {
				return err
			}
			defer func() {
				_ = reject.Close()
			}()
			response, err := openIndex(ctx, cfg, ingest.ResponseIndexDir, embedder)
			if err != nil {
				return err
			}
			defer func() {
				_ = response.Close()
			}()

			pipeline := retrieval.NewPipeline(retrieval.NewGate(reject), response, reranker, cfg.RejectThrottle)
			result, err := pipeline.Query(ctx, question, maxContext)
			if err != nil {
				return err
			}
			if result == nil {
				color.Red("rejected: question is out of domain")
				return nil
			}

			color.Green("sources:")
			for _, src := range result.Sources {
				fmt.Printf("  %s\n", src)
			}
			color.Cyan("chunks:")
			fmt.Println(result.Chunks)
			color.Cyan("context (%d bytes):", len(result.Context))
			fmt.Println(result.Context)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxContext, "max-context", retrieval.DefaultContextMaxLength, "maximum assembled context length in bytes")
	return cmd
}
