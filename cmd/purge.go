package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/docent/internal/app"
	"github.com/koopa0/docent/internal/config"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all indexed documentation and chat history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPurge(cmd.Context())
	},
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !purgeYes {
		fmt.Print("This deletes all indexed files, chunks and chat history. Continue? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

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

	if err := a.Store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purging: %w", err)
	}

	fmt.Println("Corpus purged.")
	return nil
}
