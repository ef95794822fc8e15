// Package cmd provides CLI commands for the crewly tool.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "crewly",
	Short:   "Crewly - AI coding agent orchestrator",
	Version: Version,
	Long: `Crewly hosts AI coding agents inside terminal-multiplexer sessions.

It dispatches chat messages and system events one at a time to a central
orchestrator agent, persists session state across restarts, and carries
per-agent and per-project memory forward between sessions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose)
	},
}

// Execute runs the root command and returns an exit code for main.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error.
		return 1
	}
	return 0
}

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
