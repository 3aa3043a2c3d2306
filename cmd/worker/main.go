package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dropzone-hq/dropzone/internal/aircraft"
	"github.com/dropzone-hq/dropzone/internal/app"
	jobmetrics "github.com/dropzone-hq/dropzone/internal/jobs"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/platform/db"
	"github.com/dropzone-hq/dropzone/internal/shared"
	"github.com/dropzone-hq/dropzone/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Job counters land on the worker's own registry so the JobFailures
	// and LoadSweepStalled alerts have a scrape target.
	obs := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(obs.Registerer())

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", obs.Handler())
	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metricsMux}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()

	loadsService := loads.NewService(loads.NewRepository(pool),
		aircraft.NewService(aircraft.NewRepository(pool)), logger, nil)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	retentionDays := int(cfg.AuditRetention / (24 * time.Hour))
	cron, err := jobs.Schedule(retentionDays)
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLoadStatusSweep, Handler: jobs.NewLoadStatusSweepHandler(loadsService, metrics, logger)},
			{Type: jobs.TaskAuditTrim, Handler: jobs.NewAuditTrimHandler(auditLogger, metrics, logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, metrics, logger)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
