package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/cron"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/unit"
	"github.com/spf13/cobra"
)

var listHome string

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered units and their schedules",
	Run:   listHandler,
}

func listHandler(cmd *cobra.Command, args []string) {
	home := listHome
	if home == "" {
		home = config.DefaultHome()
	}

	log, err := logger.New(logger.Config{Level: "warn", Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	store, err := config.NewStore(home)
	if err != nil {
		fmt.Printf("Failed to open config: %v\n", err)
		os.Exit(1)
	}

	catalog := unit.NewCatalog(home, store, log)
	if err := catalog.Refresh(); err != nil {
		fmt.Printf("Failed to load units: %v\n", err)
		os.Exit(1)
	}

	units := catalog.Units()
	if len(units) == 0 {
		fmt.Printf("No units found under %s\n", home)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED\tSCHEDULE\tNEXT RUN")
	now := time.Now()
	for _, u := range units {
		next := "-"
		if u.Config.Enabled {
			if t, ok := cron.NextRun(u.Config.Schedule, now); ok {
				next = cron.FormatNextRun(t)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
			u.ID, u.DisplayName, u.Config.Enabled,
			cron.ToEnglish(u.Config.Schedule), next)
	}
	w.Flush()
}

func init() {
	listCmd.Flags().StringVar(&listHome, "home", "", "Home directory with units and config (default: ~/.rota)")
}
