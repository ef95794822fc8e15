package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/mcpserver"
	"github.com/crewly-ai/crewly/internal/memory"
	"github.com/crewly-ai/crewly/internal/scheduler"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP tool server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve memory and scheduling tools over stdio",
	Long: `Runs the MCP tool server on stdin/stdout. CLI runtimes discover it
through the .mcp.json descriptor written into each agent's working
directory and use it to record memory and schedule reminders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()
		srv := mcpserver.New(memory.NewStore(logger), scheduler.NewStore(logger), Version, logger)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
