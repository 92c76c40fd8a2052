package cli

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its checkpoint",
	Args:  cobra.ExactArgs(1),
	Run:   runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
