// Package cmd defines and implements the CLI commands for the feedwatch
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedwatch",
		Short: "Watches public feed pages for posts matching a keyword.",
		Long: `feedwatch runs a single pass over a fixed list of public feed pages,
extracts the newest post from each page's embedded data blob, tests it
against a keyword, and notifies the configured channels when the match
state changes. State is persisted between runs; scheduling is left to
cron or an equivalent external scheduler.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute is the main entry point. Per-source and delivery failures are
// logged inside the run and do not reach here; an error here is fatal
// (bad config, unwritable state) and exits non-zero.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// configPath resolves the --config flag, falling back to ./config.yaml
// when one exists.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}
