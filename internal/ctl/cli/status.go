package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelworks/reelworks/internal/ctl/client"
	"github.com/reelworks/reelworks/internal/ctl/output"
)

const maxConsecutiveErrors = 5

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Check job status",
	Long: `Check the status of a processing job.

Examples:
  reelctl status abc123          # One-shot status
  reelctl status abc123 --watch  # Watch until complete`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusWatch bool

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Watch until complete")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jobID := args[0]

	if statusWatch {
		return watchJob(ctx, jobID)
	}

	job, err := apiClient.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}

	if jsonOutput {
		return printer.JSON(job)
	}

	printJob(job)
	return nil
}

func printJob(job *client.Job) {
	printer.Section("Job Status")
	printer.KeyValue("ID", job.ID)
	printer.KeyValue("Type", job.JobType)
	printer.KeyValue("Source", job.SourceKey)
	printer.KeyValue("Status", job.Status)
	if job.Attempts > 1 {
		printer.KeyValue("Attempts", fmt.Sprintf("%d", job.Attempts))
	}
	if job.ErrorMessage != nil {
		printer.KeyValue("Error", *job.ErrorMessage)
	}

	result, err := job.DecodeResult()
	if err != nil || result == nil {
		return
	}

	printer.Section("Outputs")
	if result.TranscodedVideoKey != "" {
		printer.KeyValue("Video", result.TranscodedVideoKey)
	}
	if len(result.ThumbnailKeys) > 0 {
		printer.KeyValue("Thumbnails", fmt.Sprintf("%d", len(result.ThumbnailKeys)))
	}
	if result.PublicBaseURL != "" {
		printer.KeyValue("Public URL", result.PublicBaseURL)
	}
}

func watchJob(ctx context.Context, jobID string) error {
	spinner := output.NewSpinner(fmt.Sprintf("Watching %s...", jobID), quietMode || jsonOutput)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	timeout := time.After(cfg.GetTimeout("watch"))
	var consecutiveErrors int

	for {
		select {
		case <-ctx.Done():
			spinner.Finish()
			return ctx.Err()
		case <-timeout:
			spinner.Finish()
			return fmt.Errorf("timed out waiting for job")
		case <-ticker.C:
			job, err := apiClient.GetJob(ctx, jobID)
			if err != nil {
				consecutiveErrors++
				spinner.Update(fmt.Sprintf("Status: error (%d/%d retries)", consecutiveErrors, maxConsecutiveErrors))
				if consecutiveErrors >= maxConsecutiveErrors {
					spinner.Finish()
					return fmt.Errorf("failed after %d consecutive errors: %w", consecutiveErrors, err)
				}
				continue
			}

			consecutiveErrors = 0
			spinner.Update(fmt.Sprintf("Status: %s", job.Status))

			switch job.Status {
			case "completed":
				spinner.Finish()
				if jsonOutput {
					return printer.JSON(job)
				}
				printer.Success("Job %s completed in %s", jobID, spinner.Duration().Round(time.Second))
				printJob(job)
				return nil
			case "failed", "canceled":
				spinner.Finish()
				if jsonOutput {
					return printer.JSON(job)
				}
				if job.ErrorMessage != nil {
					printer.Error("Job %s %s: %s", jobID, job.Status, *job.ErrorMessage)
				} else {
					printer.Error("Job %s %s", jobID, job.Status)
				}
				return nil
			}
		}
	}
}
