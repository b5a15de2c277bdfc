package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a genomic file for scanning and storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	path := args[0]

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	jobID, err := newClient(server).submit(filepath.Base(path), body)
	if err != nil {
		return fmt.Errorf("submit failed: %v", err)
	}

	fmt.Printf("✓ Job submitted: %s\n", jobID)
	return nil
}
