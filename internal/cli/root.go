// Package cli defines the sage command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sage/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Sage - retrieval-augmented assistant over a local document corpus",
	Long: `Sage indexes a directory of Markdown and PDF documents into a vector
store and answers questions over them through a streaming websocket API,
fusing document chunks, conversation history, and external sources into
each prompt.

Configuration comes from environment variables (a .env file in the
working directory is honored). CORPUS_DIR is required.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg)
		return nil
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger installs the process-wide slog default according to
// LOG_LEVEL and LOG_FORMAT.
func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
