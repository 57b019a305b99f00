// Package cmd implements the runci command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for runci
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runci",
		Short: "Local CI workflow runner",
		Long: `Runci executes declarative CI workflows on the local machine.

It parses workflow files (YAML or Markdown), evaluates their trigger
rules, resolves job dependencies, and runs each job's steps sequentially
as subprocesses with fail-fast semantics. Independent jobs run in
parallel waves.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
