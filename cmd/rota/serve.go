package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rota-dev/rota/internal/app"
	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/spf13/cobra"
)

var (
	serveHome        string
	serveMetricsAddr string
	serveLogLevel    string
	serveLogFormat   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rota daemon (main command)",
	Long: `Start the rota daemon. It discovers units under the home directory,
evaluates their cron schedules once per minute, runs the agent tool for each
firing and delivers confirmation requests through the configured channel.

Send SIGUSR1 to toggle the scheduler pause; SIGINT/SIGTERM shut down.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	home := serveHome
	if home == "" {
		home = config.DefaultHome()
	}

	log, err := logger.New(logger.Config{
		Level:  serveLogLevel,
		Format: serveLogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("starting rota",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "home", Value: home})

	application, err := app.New(app.Options{
		Home:        home,
		MetricsAddr: serveMetricsAddr,
	}, log)
	if err != nil {
		log.Error("failed to initialize", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGUSR1 {
				application.TogglePause()
				continue
			}
			log.Info("received shutdown signal",
				logger.Field{Key: "signal", Value: sig.String()})
			cancel()
			return
		}
	}()

	if err := application.Run(ctx); err != nil {
		log.Error("daemon failed", err)
		os.Exit(1)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHome, "home", "", "Home directory with units and config (default: ~/.rota)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty disables it)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log format (json, text)")
}
