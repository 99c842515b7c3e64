package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/docent/internal/app"
	"github.com/koopa0/docent/internal/config"
)

// timePrecision rounds durations in command output.
const timePrecision = time.Millisecond

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch documentation from the configured repository and re-index it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Source.Owner == "" || cfg.Source.Repo == "" {
		return fmt.Errorf("no documentation source configured: set source.owner and source.repo")
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	slog.SetDefault(logger)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	logger.Info("syncing documentation",
		"owner", cfg.Source.Owner,
		"repo", cfg.Source.Repo,
		"path", cfg.Source.Path,
	)

	result, err := a.Sync(ctx)
	if err != nil {
		return fmt.Errorf("syncing: %w", err)
	}

	fmt.Printf("Synced %d files in %s\n", result.FilesAdded, result.Duration.Round(timePrecision))
	fmt.Printf("  chunks created:    %d\n", result.ChunksCreated)
	if result.ChunksUnembedded > 0 {
		fmt.Printf("  chunks unembedded: %d (will be skipped during search)\n", result.ChunksUnembedded)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("  files failed:      %d (see logs)\n", result.FilesFailed)
	}
	return nil
}
