// Package main is the entry point for the checkbook CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkbook",
		Short:         "Checkbook calculator with undo, redo and a history tape",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", "", "path to checkbook.toml (default ./checkbook.toml if present)")
	root.PersistentFlags().String("data-dir", "", "override storage.data_dir")
	root.PersistentFlags().String("log-level", "error", "log level for non-interactive commands")

	root.AddCommand(
		tuiCmd(),
		evalCmd(),
		historyCmd(),
		settingsCmd(),
		initCmd(),
	)

	return root
}
