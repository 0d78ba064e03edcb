package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marijnz/bouncingballs-sub001/config"
	"github.com/marijnz/bouncingballs-sub001/core"
	"github.com/marijnz/bouncingballs-sub001/logging"
	obs "github.com/marijnz/bouncingballs-sub001/observability/prometheus"
)

var (
	runLoad workload
	hold    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic group workload",
	Long:  `Schedules a number of task groups on a fresh queue, waits until they finish and prints a summary.`,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runLoad.Groups, "groups", "g", 10, "Number of groups to schedule")
	runCmd.Flags().IntVarP(&runLoad.TasksPerGroup, "tasks", "t", 100, "Tasks per group")
	runCmd.Flags().DurationVar(&runLoad.TaskDuration, "task-duration", time.Millisecond, "Base duration of each task")
	runCmd.Flags().DurationVar(&runLoad.Jitter, "jitter", time.Millisecond, "Random extra duration per task")
	runCmd.Flags().DurationVar(&hold, "hold", 0, "Keep serving metrics this long after the workload")
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	return logging.New(
		logging.WithLevel(c.Level),
		logging.WithJSONFormat(c.JSON),
		logging.WithFile(c.File),
		logging.WithRotationConfig(c.MaxSize, c.MaxAge, c.MaxBackups, c.Compress),
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	zl, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = zl.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queueConfig := &core.TaskQueueConfig{
		Name:   cfg.Queue.Name,
		Logger: logging.NewZapLogger(zl),
	}

	var server *http.Server
	var poller *obs.SnapshotPoller
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
		if err != nil {
			return fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		queueConfig.Metrics = exporter

		poller, err = obs.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.Metrics.PollInterval)
		if err != nil {
			return fmt.Errorf("failed to create snapshot poller: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error("metrics server failed", zap.Error(err))
			}
		}()
		zl.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	q := core.NewTaskQueueWithConfig(cfg.Queue.Workers, queueConfig)
	q.Start(ctx)
	if poller != nil {
		poller.AddQueue(q.Name(), q)
		poller.Start(ctx)
		defer poller.Stop()
	}

	result, runErr := runWorkload(ctx, q, runLoad)
	stopErr := q.Close()

	if runErr == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "queue %s: %d groups, %d/%d finished, %d tasks in %v (%d workers)\n",
			q.Name(), result.Groups, result.Finished, result.Groups, result.Tasks,
			result.Elapsed.Round(time.Millisecond), q.WorkerCount())
	}

	if server != nil {
		if hold > 0 {
			zl.Info("holding metrics endpoint", zap.Duration("hold", hold))
			select {
			case <-time.After(hold):
			case <-ctx.Done():
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	return errors.Join(runErr, stopErr)
}
