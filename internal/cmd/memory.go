package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/memory"
)

var (
	memoryRole    string
	memoryProject string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect agent and project memory",
}

var memoryBriefingCmd = &cobra.Command{
	Use:   "briefing <agent-id>",
	Short: "Print the startup briefing an agent would receive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := memoryProject
		if project == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			project = wd
		}

		store := memory.NewStore(nil)
		briefing, err := store.StartupBriefing(args[0], memoryRole, project)
		if err != nil {
			return err
		}
		if briefing == "" {
			fmt.Println("(no memory yet; briefing would be empty)")
			return nil
		}
		fmt.Println(briefing)
		return nil
	},
}

var memoryFocusCmd = &cobra.Command{
	Use:   "focus [text]",
	Short: "Show or set the project's current focus",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := memoryProject
		if project == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			project = wd
		}

		store := memory.NewStore(nil)
		if len(args) == 1 {
			return store.SetCurrentFocus(project, args[0])
		}
		focus := store.CurrentFocus(project)
		if focus == "" {
			fmt.Println("(no current focus)")
			return nil
		}
		fmt.Println(focus)
		return nil
	},
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&memoryRole, "role", "developer", "agent role")
	memoryCmd.PersistentFlags().StringVar(&memoryProject, "project", "", "project path (default: cwd)")
	memoryCmd.AddCommand(memoryBriefingCmd, memoryFocusCmd)
	rootCmd.AddCommand(memoryCmd)
}
