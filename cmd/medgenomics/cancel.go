package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cooperative cancellation of a running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	if err := newClient(server).cancel(args[0]); err != nil {
		return fmt.Errorf("cancel failed: %v", err)
	}

	fmt.Println("✓ Cancellation requested")
	return nil
}
