// Package app assembles the daemon: catalog, scheduler, runner,
// confirmation broker, notification channel and metrics, with one lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/confirm"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/metrics"
	"github.com/rota-dev/rota/internal/notify"
	"github.com/rota-dev/rota/internal/runner"
	"github.com/rota-dev/rota/internal/scheduler"
	"github.com/rota-dev/rota/internal/unit"
)

// Options controls daemon assembly.
type Options struct {
	Home        string
	MetricsAddr string // empty disables the metrics endpoint
}

// App owns every long-lived component of the daemon.
type App struct {
	opts   Options
	logger *logger.Logger

	store    *config.Store
	catalog  *unit.Catalog
	broker   *confirm.Broker
	sched    *scheduler.Scheduler
	runner   *runner.Runner
	notifier *notify.Notifier
	metrics  *metrics.PrometheusMetrics
	registry *prometheus.Registry

	paused atomic.Bool
}

// New builds the component graph. Nothing is started yet.
func New(opts Options, log *logger.Logger) (*App, error) {
	store, err := config.NewStore(opts.Home)
	if err != nil {
		return nil, fmt.Errorf("failed to open config store: %w", err)
	}

	a := &App{opts: opts, logger: log, store: store}

	a.notifier = notify.New(store.Telegram(), log)
	var presenter confirm.Presenter = a.notifier
	if !a.notifier.Enabled() {
		presenter = notify.NewLogPresenter(log)
	}
	a.broker = confirm.New(presenter, log)
	a.notifier.BindResponder(a.broker)

	a.catalog = unit.NewCatalog(opts.Home, store, log)

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.InitPrometheusMetrics("rota", a.registry)

	sink := runner.NewFileLogSink(opts.Home)
	a.runner = runner.New(a.broker, sink, store.Defaults, log)

	a.sched = scheduler.New(a.catalog, store.Defaults, a.paused.Load, a.onTrigger, log)

	return a, nil
}

// Run starts every component and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.catalog.Refresh(); err != nil {
		return fmt.Errorf("failed to load unit catalog: %w", err)
	}
	a.logger.Info("unit catalog loaded",
		logger.Field{Key: "units", Value: len(a.catalog.Units())},
		logger.Field{Key: "home", Value: a.opts.Home})

	if err := a.notifier.Start(ctx); err != nil {
		// The daemon stays useful without the notification channel;
		// confirmations will fail over to the log and time out.
		a.logger.Error("failed to start telegram notifier", err)
	}

	go func() {
		if err := a.catalog.Watch(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("unit directory watcher stopped", err)
		}
	}()

	if a.opts.MetricsAddr != "" {
		go a.serveMetrics(ctx)
	}
	go a.refreshGauges(ctx)
	go a.sched.Start(ctx)

	a.logger.Info("rota is running")
	<-ctx.Done()

	a.notifier.Stop()
	a.logger.Info("rota stopped")
	return nil
}

// onTrigger launches the run asynchronously so the scheduler's evaluation
// loop never blocks. MarkComplete is guaranteed exactly once per trigger.
func (a *App) onTrigger(u unit.Unit) {
	go func() {
		defer a.sched.MarkComplete(u.ID)

		res := a.runner.Run(u)
		a.metrics.RecordRun(res.Success, res.Duration)
		if !res.Success {
			a.notifier.NotifyRunFailure(u.DisplayName, res.Error)
		}
	}()
}

// RunOnce executes a unit immediately in this process and returns its result.
func (a *App) RunOnce(id string) (runner.Result, error) {
	if err := a.catalog.Refresh(); err != nil {
		return runner.Result{}, fmt.Errorf("failed to load unit catalog: %w", err)
	}
	u, ok := a.catalog.Get(id)
	if !ok {
		return runner.Result{}, fmt.Errorf("unknown unit %q", id)
	}

	res := a.runner.Run(u)
	a.metrics.RecordRun(res.Success, res.Duration)
	return res, nil
}

// Catalog exposes the unit catalog for read-only commands.
func (a *App) Catalog() *unit.Catalog {
	return a.catalog
}

// TogglePause flips the scheduler pause flag and returns the new state.
// Manual triggers keep working while paused.
func (a *App) TogglePause() bool {
	paused := !a.paused.Load()
	a.paused.Store(paused)
	a.logger.Info("scheduler pause toggled",
		logger.Field{Key: "paused", Value: paused})
	return paused
}

// serveMetrics exposes the Prometheus registry over HTTP.
func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: a.opts.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("metrics endpoint listening",
		logger.Field{Key: "addr", Value: a.opts.MetricsAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Error("metrics endpoint failed", err)
	}
}

// refreshGauges keeps the running/queued/pending gauges current.
func (a *App) refreshGauges(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.SetSchedulerCounts(len(a.sched.Running()), len(a.sched.Queued()))
			a.metrics.SetPendingConfirmations(len(a.broker.PendingRequests()))
		}
	}
}
