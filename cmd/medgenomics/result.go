package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Show a job's terminal verdict",
	Args:  cobra.ExactArgs(1),
	RunE:  runResult,
}

func runResult(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	verdict, err := newClient(server).result(args[0])
	if err != nil {
		return fmt.Errorf("result failed: %v", err)
	}

	fmt.Printf("Terminal state: %s\n", verdict.TerminalState)
	if verdict.Reason != "" {
		fmt.Printf("Reason:         %s\n", verdict.Reason)
	}
	fmt.Printf("IDS score:      %.2f\n", verdict.IDSScore)
	fmt.Printf("AML score:      %.4f\n", verdict.AMLScore)
	if verdict.ArtifactRef != nil {
		fmt.Printf("Content hash:   %s\n", verdict.ArtifactRef.ContentHash)
		fmt.Printf("Stored size:    %d bytes\n", verdict.ArtifactRef.StoredSize)
	}
	if verdict.AnalysisOK {
		fmt.Printf("Analysis:       %s\n", verdict.AnalysisResult)
	}
	fmt.Printf("Total duration: %d ms\n", verdict.TotalDurationMs)
	return nil
}
