package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagWorkDir   string
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	root := &cobra.Command{
		Use:   "grounder",
		Short: "Domain-gated retrieval over a markdown corpus",
		Long: "grounder ingests a markdown corpus into reject and response vector\n" +
			"indexes, gates questions by a calibrated similarity threshold, and\n" +
			"assembles bounded grounding context for accepted questions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.toml", "path to the TOML config file")
	root.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "workdir", "working directory holding staged corpus and indexes")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newCalibrateCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newCheckCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if flagLogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
