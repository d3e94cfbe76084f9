// Command khaledctl administers the responder data files from a shell.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ai-khaled/internal/app"
	"ai-khaled/internal/config"
	"ai-khaled/internal/logger"
)

var (
	dataDir string
	verbose bool
	timeout time.Duration
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "khaledctl",
		Short:         "Manage the Khaled responder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: DATA_DIR env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(
		newAskCmd(),
		newTeachCmd(),
		newGenerateCmd(),
		newTrainCmd(),
		newDatasetCmd(),
		newKBCmd(),
		newStatsCmd(),
		newBackupCmd(),
		newResetCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newPendingCmd(),
	)
	return rootCmd
}

// withApp boots the stores for a single command and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if dataDir != "" {
		if err := os.Setenv("DATA_DIR", dataDir); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	lg, err := logger.Init(logger.Config{Level: level, Format: cfg.LogFormat, Output: "stderr"})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to init app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn().Err(err).Msg("close")
		}
	}()
	return fn(ctx, a)
}

func main() {
	_ = godotenv.Load(".env")
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
