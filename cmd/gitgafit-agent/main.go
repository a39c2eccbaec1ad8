package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quanluon/gitgafit-web-sub000/logger"
)

var rootCmd = &cobra.Command{
	Use:   "gitgafit-agent",
	Short: "GitGaFit agent - background generation job tracking",
	Long: `GitGaFit agent - tracks background generation jobs for a user session.

The agent keeps a persisted ledger of in-flight generation jobs (workout
plans, meal plans, InBody OCR, body photo analysis), follows their progress
over a realtime websocket channel, reconciles against the backend's
active-jobs list at session start, and receives push-delivered terminal
outcomes through a background worker.

Examples:
  gitgafit-agent run --user usr_123   # Track generations for a user
  gitgafit-agent worker               # Run the background push worker
  gitgafit-agent version              # Show build information`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
