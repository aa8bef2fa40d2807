package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelworks/reelworks/internal/ctl/output"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List processing jobs",
	Long: `List jobs tracked by the gateway.

Examples:
  reelctl list                    # Recent jobs
  reelctl list --status=failed    # Only failed jobs
  reelctl list --limit=50         # More of them
  reelctl list --json | jq '.jobs[].id'`,
	RunE: runList,
}

var (
	listLimit  int
	listOffset int
	listStatus string
)

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Number of jobs to list (max 100)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Offset for pagination")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (pending, running, completed, failed, canceled)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	resp, err := apiClient.ListJobs(ctx, listLimit, listOffset, listStatus)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jsonOutput {
		return printer.JSON(resp)
	}

	if len(resp.Jobs) == 0 {
		printer.Info("No jobs found")
		return nil
	}

	table := output.NewTable([]string{"ID", "Type", "Source", "Status", "Created"}, quietMode)

	for _, j := range resp.Jobs {
		table.Append([]string{
			shortID(j.ID),
			j.JobType,
			truncate(j.SourceKey, 30),
			j.Status,
			formatTime(j.CreatedAt),
		})
	}

	table.Render()

	if !quietMode {
		printer.Println()
		printer.Printf("Showing %d of %d jobs", len(resp.Jobs), resp.Total)
		if resp.HasMore {
			printer.Printf(" (use --offset=%d for more)", listOffset+listLimit)
		}
		printer.Println()
	}

	return nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}

	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
