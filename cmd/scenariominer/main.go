// Package main provides the entry point for the scenariominer CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scenariominer/cmd/scenariominer/commands"
	"github.com/Sumatoshi-tech/scenariominer/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "scenariominer",
		Short: "Mine merge, cherry-pick and file-commit chain scenarios from Git history",
		Long: `scenariominer walks every branch of Git repositories and records the
scenarios they contain: runs of commits touching the same file, merges with
and without conflicts, and cherry-picks found by trailer or patch content.

Commands:
  mine      Mine one or more repositories
  export    Re-emit results stored in a database
  validate  Check a JSON report against the report schema
  mcp       Serve the mining tool over MCP stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewMineCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
