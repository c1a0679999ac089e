package main

import (
	"fmt"
	"os"

	"github.com/rota-dev/rota/internal/app"
	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/spf13/cobra"
)

var runHome string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <unit-id>",
	Short: "Run a unit once, immediately",
	Long: `Run a single unit right now, ignoring its cron schedule. The run
uses the same tool invocation and confirmation protocol as a scheduled run.`,
	Args: cobra.ExactArgs(1),
	Run:  runHandler,
}

func runHandler(cmd *cobra.Command, args []string) {
	home := runHome
	if home == "" {
		home = config.DefaultHome()
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(app.Options{Home: home}, log)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	res, err := application.RunOnce(args[0])
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	fmt.Println(res.Output)
	if !res.Success {
		fmt.Fprintf(os.Stderr, "run failed: %s\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("completed in %.1fs\n", res.Duration.Seconds())
}

func init() {
	runCmd.Flags().StringVar(&runHome, "home", "", "Home directory with units and config (default: ~/.rota)")
}
