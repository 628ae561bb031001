package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current state of a batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().Status(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("  Status: %s\n", status.Status)
	if status.TotalFiles > 0 {
		fmt.Printf("  Progress: %d/%d files\n", status.DoneFiles, status.TotalFiles)
	}
	if status.CurrentFile != "" {
		fmt.Printf("  Current file: %s\n", status.CurrentFile)
	}
	if status.Message != "" {
		fmt.Printf("  Message: %s\n", status.Message)
	}
	if status.Error != "" {
		fmt.Printf("  Error: %s\n", status.Error)
	}
	return nil
}
