package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete completed checkpoints older than the retention window",
	Run:   runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) {
	cfg := setup()

	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg)
	defer app.Close()

	removed, err := app.Purge(ctx)
	if err != nil {
		slog.Error("Purge failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Purge completed", "removed", removed)
}
