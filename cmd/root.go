// Package cmd defines and implements the CLI commands for the
// media-log-ingestor executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

// version is overridden at build time via -ldflags.
var version = "dev"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "media-log-ingestor",
		Version: version,
		Short:   "Backfills a site's media-usage log from its page content.",
		Long: `media-log-ingestor discovers the pages of a content site, extracts
every media reference from each page's markdown source, attributes each
reference to the user who last previewed the page, and submits the
references as append-only media-log entries under the admin API's rate
limits.`,

		// Load a .env file, if present, before any subcommand reads its
		// configuration. Missing files are not an error.
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default none; env and flags apply)")
	cmd.AddCommand(newBackfillCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
