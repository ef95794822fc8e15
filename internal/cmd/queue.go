package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewly-ai/crewly/internal/daemon"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the message queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue statistics from the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := daemon.ReadStats()
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Println("no stats found; is the daemon running?")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("pending:    %d\n", stats.Pending)
		fmt.Printf("processing: %v\n", stats.Processing)
		fmt.Printf("processed:  %d\n", stats.TotalProcessed)
		fmt.Printf("failed:     %d\n", stats.TotalFailed)
		fmt.Printf("as of:      %s\n", stats.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	rootCmd.AddCommand(queueCmd)
}
