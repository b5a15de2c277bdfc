package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var proofCmd = &cobra.Command{
	Use:   "proof <job-id>",
	Short: "Show a job's deletion proof, once its artifact has been expired",
	Args:  cobra.ExactArgs(1),
	RunE:  runProof,
}

func runProof(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	proof, err := newClient(server).proof(args[0])
	if err != nil {
		return fmt.Errorf("proof failed: %v", err)
	}

	fmt.Printf("Job:         %s\n", proof.JobID)
	fmt.Printf("Content hash: %s\n", proof.ArtifactContentHash)
	fmt.Printf("Deleted at:  %s\n", proof.DeletionTimestamp.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("Proof digest: %s\n", proof.ProofDigest)
	return nil
}
