package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/session"
	"github.com/crewly-ai/crewly/internal/tmux"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage agent sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live sessions and persisted metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := tmux.NewTmux()
		live, err := backend.ListSessions()
		if err != nil {
			return err
		}
		liveSet := make(map[string]bool, len(live))
		for _, name := range live {
			liveSet[name] = true
		}

		store := session.NewStateStore(config.SessionStatePath(), nil)
		persisted := make(map[string]session.PersistedInfo)
		if _, err := store.LoadMetadata(); err == nil {
			for _, info := range store.List() {
				persisted[info.Name] = info
			}
		}

		names := make(map[string]bool)
		for name := range liveSet {
			names[name] = true
		}
		for name := range persisted {
			names[name] = true
		}
		if len(names) == 0 {
			fmt.Println("no sessions")
			return nil
		}

		sorted := make([]string, 0, len(names))
		for name := range names {
			sorted = append(sorted, name)
		}
		sort.Strings(sorted)

		for _, name := range sorted {
			state := "persisted"
			if liveSet[name] {
				state = "live"
			}
			line := fmt.Sprintf("%-30s %s", name, state)
			if info, ok := persisted[name]; ok && info.RuntimeType != "" {
				line += fmt.Sprintf("  runtime=%s role=%s", info.RuntimeType, info.Role)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var sessionsKillCmd = &cobra.Command{
	Use:   "kill <name>",
	Short: "Kill a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := tmux.NewTmux()
		if err := backend.KillSession(args[0]); err != nil {
			return err
		}

		// Drop the persisted metadata too, or the next daemon start would
		// resurrect the session we just killed.
		store := session.NewStateStore(config.SessionStatePath(), nil)
		if _, err := store.LoadMetadata(); err == nil {
			store.UnregisterSession(args[0])
			store.Flush()
			if err := store.SaveState(); err != nil {
				return fmt.Errorf("updating session state: %w", err)
			}
		}

		fmt.Printf("killed %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsKillCmd)
	rootCmd.AddCommand(sessionsCmd)
}
