package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/scheduler"
)

var (
	scheduleName      string
	scheduleAmount    int
	scheduleUnit      string
	scheduleRecurring bool
	scheduleProject   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled messages",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted scheduled messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduler.NewStore(nil)
		all, err := store.Load()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("no scheduled messages")
			return nil
		}
		for _, m := range all {
			state := "inactive"
			if m.IsActive {
				state = "active"
			}
			kind := "one-shot"
			if m.IsRecurring {
				kind = "recurring"
			}
			line := fmt.Sprintf("%-36s %-9s %-9s every %d %s  %s",
				m.ID, state, kind, m.Delay.Amount, m.Delay.Unit, m.Name)
			if m.NextRun != nil {
				line += fmt.Sprintf("  next=%s", m.NextRun.Format("2006-01-02 15:04:05"))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <body>",
	Short: "Persist a scheduled message (armed by the daemon)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduler.NewStore(nil)
		msg := scheduler.Message{
			ID:            uuid.NewString(),
			Name:          scheduleName,
			TargetProject: scheduleProject,
			Body:          args[0],
			Delay:         scheduler.Delay{Amount: scheduleAmount, Unit: scheduler.DelayUnit(scheduleUnit)},
			IsRecurring:   scheduleRecurring,
			IsActive:      true,
		}
		if err := msg.Delay.Validate(); err != nil {
			return err
		}
		if err := store.Upsert(msg); err != nil {
			return err
		}
		// The daemon's store watch picks this up and arms the timer.
		fmt.Println(msg.ID)
		return nil
	},
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Deactivate a scheduled message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := scheduler.NewStore(nil)
		msg, ok, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("scheduled message %s not found", args[0])
		}
		msg.IsActive = false
		msg.NextRun = nil
		return store.Upsert(msg)
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleName, "name", "reminder", "message name (auto-assign* runs sequentially)")
	scheduleAddCmd.Flags().IntVar(&scheduleAmount, "every", 30, "delay amount")
	scheduleAddCmd.Flags().StringVar(&scheduleUnit, "unit", "minutes", "delay unit (seconds, minutes, hours, days)")
	scheduleAddCmd.Flags().BoolVar(&scheduleRecurring, "recurring", false, "rearm after each firing")
	scheduleAddCmd.Flags().StringVar(&scheduleProject, "project", "", "target project path")
	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleCancelCmd)
	rootCmd.AddCommand(scheduleCmd)
}
