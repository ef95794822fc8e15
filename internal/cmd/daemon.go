package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/daemon"
	"github.com/crewly-ai/crewly/internal/pty"
	"github.com/crewly-ai/crewly/internal/runtime"
	"github.com/crewly-ai/crewly/internal/session"
)

var (
	daemonRuntime string
	daemonWorkDir string
	daemonUsePTY  bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the orchestrator core",
	Long: `Starts the orchestrator session, restores persisted sessions, and
dispatches queued messages until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		var backend session.Backend
		if daemonUsePTY {
			backend = pty.NewBackend()
		}

		d, err := daemon.New(cfg, daemon.Options{
			Backend:             backend,
			OrchestratorRuntime: runtime.Type(daemonRuntime),
			WorkDir:             daemonWorkDir,
			Logger:              slog.Default(),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return d.Run(ctx)
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonRuntime, "runtime", string(runtime.TypeClaudeCode),
		"orchestrator runtime (claude-code, gemini-cli, codex-cli, shell)")
	daemonCmd.Flags().StringVar(&daemonWorkDir, "workdir", "", "orchestrator working directory (default: cwd)")
	daemonCmd.Flags().BoolVar(&daemonUsePTY, "pty", false, "host sessions in direct PTYs instead of tmux")
	rootCmd.AddCommand(daemonCmd)
}
