package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's current state and stage history",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	view, err := newClient(server).status(args[0])
	if err != nil {
		return fmt.Errorf("status failed: %v", err)
	}

	fmt.Printf("Job:      %s\n", view.ID)
	fmt.Printf("Filename: %s\n", view.Filename)
	fmt.Printf("State:    %s\n", view.State)
	fmt.Printf("Received: %s\n", view.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"))
	if !view.CompletedAt.IsZero() {
		fmt.Printf("Completed: %s\n", view.CompletedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if len(view.StageRecords) > 0 {
		fmt.Println("Stages:")
		for _, rec := range view.StageRecords {
			fmt.Printf("  %-10s %-6s %v\n", rec.Name, rec.Outcome, rec.Duration())
		}
	}
	return nil
}
