package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reelworks/reelworks/internal/ctl/output"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <job-id>",
	Short: "Download a job's output",
	Long: `Download an output of a completed job via a presigned URL.

Without --key the transcoded video is fetched.

Examples:
  reelctl fetch abc123                                       # Transcoded video
  reelctl fetch abc123 -o out.mp4                            # Pick the filename
  reelctl fetch abc123 --key=processed/abc123/thumbnails/thumb_001.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

var (
	fetchKey    string
	fetchOutput string
)

func init() {
	fetchCmd.Flags().StringVar(&fetchKey, "key", "", "Output object key (defaults to the transcoded video)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Destination path (defaults to the object's basename)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout("fetch"))
	defer cancel()

	jobID := args[0]

	key := fetchKey
	if key == "" {
		job, err := apiClient.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}
		if job.Status != "completed" {
			return fmt.Errorf("job is %s, nothing to fetch", job.Status)
		}

		result, err := job.DecodeResult()
		if err != nil {
			return fmt.Errorf("failed to decode job result: %w", err)
		}
		if result == nil || result.TranscodedVideoKey == "" {
			return fmt.Errorf("job has no transcoded video, use --key to pick an output")
		}
		key = result.TranscodedVideoKey
	}

	presigned, err := apiClient.PresignOutput(ctx, jobID, key, 0)
	if err != nil {
		return fmt.Errorf("failed to presign output: %w", err)
	}

	body, size, err := apiClient.FetchURL(ctx, presigned.URL)
	if err != nil {
		return fmt.Errorf("failed to download output: %w", err)
	}
	defer func() { _ = body.Close() }()

	destPath := fetchOutput
	if destPath == "" {
		destPath = filepath.Base(key)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer func() { _ = dest.Close() }()

	bar := output.NewByteProgress(size, fmt.Sprintf("Fetching %s", filepath.Base(key)), quietMode || jsonOutput)
	written, err := io.Copy(io.MultiWriter(dest, bar), body)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}

	if jsonOutput {
		return printer.JSON(map[string]any{
			"job_id": jobID,
			"key":    key,
			"path":   destPath,
			"bytes":  written,
		})
	}

	printer.Success("Saved %s (%s)", destPath, formatSize(written))
	return nil
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
