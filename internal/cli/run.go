package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/batcher/internal/batch"
	"github.com/vietddude/batcher/internal/core/domain"
)

var runCmd = &cobra.Command{
	Use:   "run <listing-url>",
	Short: "Scrape a blog listing and analyze every post",
	Args:  cobra.ExactArgs(1),
	Run:   runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	state, err := app.Run(ctx, args[0])
	reportRun(state, err)
}

func runResume(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	state, err := app.Resume(ctx, args[0])
	reportRun(state, err)
}

// reportRun logs the outcome and sets the exit code. An interrupted run
// is not an error from the operator's point of view; the checkpoint is
// in place and resume picks it up.
func reportRun(state *domain.RunState, err error) {
	switch {
	case err == nil:
		slog.Info("Run completed",
			"run_id", state.RunID,
			"total", len(state.Items),
			"failed", state.FailedCount())

	case errors.Is(err, context.Canceled):
		slog.Info("Run interrupted; checkpoint saved",
			"run_id", state.RunID,
			"completed", len(state.Results),
			"total", len(state.Items))

	case errors.Is(err, batch.ErrCheckpointSave):
		slog.Warn("Run completed but checkpointing failed", "run_id", state.RunID, "error", err)

	default:
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}
