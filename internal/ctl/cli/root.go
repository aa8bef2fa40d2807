// Package cli implements the reelctl command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/reelworks/reelworks/internal/ctl/client"
	"github.com/reelworks/reelworks/internal/ctl/config"
	"github.com/reelworks/reelworks/internal/ctl/output"
	"github.com/reelworks/reelworks/internal/ctl/version"
)

var (
	jsonOutput bool
	quietMode  bool
	cfg        *config.Config
	apiClient  *client.Client
	printer    *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "reelctl",
	Short: "reelctl - submit and track video processing jobs",
	Long: `reelctl is the command-line interface for the reelworks gateway.

Submit videos for processing, watch job progress, and fetch the outputs.

Get started:
  reelctl submit uploads/clip.mp4    # Submit a processing job
  reelctl status <job-id> --watch    # Watch until complete
  reelctl fetch <job-id>             # Download the transcoded video`,
	Version: version.Full(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		printer = output.New(
			output.WithJSON(jsonOutput),
			output.WithQuiet(quietMode),
		)

		apiClient = client.New(cfg.BaseURL, cfg.GetTimeout("http"))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON (for scripting)")
	rootCmd.PersistentFlags().BoolVar(&quietMode, "quiet", false, "Suppress non-error output")

	rootCmd.SetVersionTemplate("reelctl version {{.Version}}\n")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(fetchCmd)
}
