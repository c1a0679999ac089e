package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rota",
	Short: "Rota - scheduled agent task runner",
	Long: `Rota runs agent units on cron schedules. A unit is a folder under
~/.rota/ containing a SKILL.md instruction document and optional helper
scripts; rota invokes an agent CLI for each run and can pause mid-task for
human confirmation.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}
