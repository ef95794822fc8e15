package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/scheduler"
)

var tasksProject string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect project task files",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks across milestones",
	RunE: func(cmd *cobra.Command, args []string) error {
		project := tasksProject
		if project == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			project = wd
		}

		tasks, err := scheduler.ListTasks(project)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("no tasks")
			return nil
		}
		for _, task := range tasks {
			fmt.Printf("%-20s %-12s %-12s %-10s %s\n",
				task.Milestone, task.State, task.Header.TargetRole,
				task.Header.StepID, filepath.Base(task.Path))
		}
		return nil
	},
}

func init() {
	tasksCmd.PersistentFlags().StringVar(&tasksProject, "project", "", "project path (default: cwd)")
	tasksCmd.AddCommand(tasksListCmd)
	rootCmd.AddCommand(tasksCmd)
}
