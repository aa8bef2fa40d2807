package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending job",
	Long: `Cancel a job that has not started yet. Jobs already picked up by a
worker cannot be canceled.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	if err := apiClient.CancelJob(cmd.Context(), jobID); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	printer.Success("Job %s canceled", jobID)
	return nil
}
