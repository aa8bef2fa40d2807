package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <source-key>",
	Short: "Submit a video processing job",
	Long: `Submit a job for a video object already in the bucket.

Examples:
  reelctl submit uploads/clip.mp4                       # Full pipeline
  reelctl submit uploads/clip.mp4 --type=video.probe    # Metadata only
  reelctl submit uploads/clip.mp4 --wait                # Block until done`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var (
	submitType string
	submitWait bool
)

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", "video.process", "Job type (video.process, video.transcode, video.thumbnails, video.probe)")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "Wait until the job finishes")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sourceKey := args[0]

	job, err := apiClient.SubmitJob(ctx, submitType, sourceKey)
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	if !submitWait {
		if jsonOutput {
			return printer.JSON(job)
		}
		printer.Success("Job submitted")
		printer.KeyValue("ID", job.ID)
		printer.KeyValue("Type", job.JobType)
		printer.KeyValue("Source", job.SourceKey)
		printer.Info("Track it with: reelctl status %s --watch", job.ID)
		return nil
	}

	return watchJob(ctx, job.ID)
}
