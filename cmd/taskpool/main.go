// Command taskpool runs a synthetic workload on a thread pool: it submits
// sleeping tasks from concurrent producers, optionally serves Prometheus
// metrics, and shuts the pool down once every accepted task has run.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memduhb/custom-thread-pool/internal/config"
	"github.com/memduhb/custom-thread-pool/internal/demo"
	"github.com/memduhb/custom-thread-pool/internal/logger"
	"github.com/memduhb/custom-thread-pool/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	cmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, error) {
	var (
		configFile string
		v          *viper.Viper
	)

	rootCmd := &cobra.Command{
		Use:   "taskpool",
		Short: "Run a synthetic workload on a fixed-size thread pool",
		Long: `taskpool starts a pool of worker goroutines, submits sleeping tasks to it
from one or more producers and then shuts it down, draining every task that
was accepted. Interrupting the command stops further submissions; queued
tasks still run before it exits.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "Path to a YAML config file.")

	v, err := config.BindFlags(rootCmd.PersistentFlags())
	if err != nil {
		return nil, fmt.Errorf("error while binding flags: %w", err)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return c.WriteYAML(cmd.OutOrStdout())
		},
	})

	return rootCmd, nil
}

func run(ctx context.Context, c *config.Config, out, logOut io.Writer) error {
	log, err := logger.New(logOut, c.Logging.Severity, c.Logging.Format)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := workerpool.NewThreadPoolMetrics(reg)

	if c.Metrics.Enabled {
		srv := serveMetrics(c.Metrics.Address, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pool, err := workerpool.New(c.Pool.Workers,
		workerpool.WithName(c.Pool.Name),
		workerpool.WithLogger(log),
		workerpool.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	log.Info("submitting tasks",
		"pool", pool.Name(),
		"workers", c.Pool.Workers,
		"tasks", c.Demo.Tasks,
		"producers", c.Demo.Producers,
	)
	sum, err := demo.Run(ctx, pool, c.Demo, log)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, sum)
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
