package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/metrics"
	"github.com/rickgao/tradesync/internal/scheduler"
	"github.com/rickgao/tradesync/internal/version"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync continuously on the configured interval",
		Long: `Run a sync cycle immediately and then once per sync.interval until
interrupted. SIGINT or SIGTERM lets the cycle in progress finish before exit.

With sync.once set in the config this behaves like "tradesync once".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return err
			}
			return runDaemon(cmd, opts)
		},
	}
}

func runDaemon(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	cfg, logger := opts.cfg, opts.logger

	logger.Info("starting tradesync",
		"version", version.Version,
		"commit", version.Commit,
		"accounts", len(cfg.Accounts),
		"interval", cfg.Sync.Interval,
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	store, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	schedOpts := []scheduler.Option{scheduler.WithReporter(store)}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		m.WatchInFlight(func() int64 { return a.writer.Stats().InFlight })
		schedOpts = append(schedOpts, scheduler.WithReporter(m))
	}

	sched := a.scheduler(schedOpts...)

	if reg != nil {
		srv := metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, reg,
			metrics.HealthHandler(sched, 3*cfg.Sync.Interval, nil), logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Sync.Once {
		return syncOnce(ctx, cmd, sched)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case <-sched.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Writer.DrainTimeout+10*time.Second)
	defer cancel()

	err = sched.Stop(stopCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("scheduler stop timed out")
	}
	logger.Info("tradesync stopped", "cycles", sched.Cycles())
	return err
}
