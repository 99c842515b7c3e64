// Package cmd implements the docent command line interface.
//
// Following the pattern used by kubectl, hugo and other standard Go CLI
// tools, all command logic lives here and main.go stays a minimal entry
// point.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/docent/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "docent",
	Short: "Docent - documentation question answering",
	Long: `Docent answers questions about a product from its Markdown
documentation. It syncs docs from a GitHub repository, chunks and embeds
them into PostgreSQL, and serves grounded answers over a JSON API or
directly from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment enables
// debug level; logs go to stderr so stdout stays clean for command output.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, cfg)
}
