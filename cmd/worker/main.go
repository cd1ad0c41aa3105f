package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerpos/ledgerpos/internal/app"
	jobmetrics "github.com/ledgerpos/ledgerpos/internal/jobs"
	"github.com/ledgerpos/ledgerpos/jobs"
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

	res, err := app.OpenResources(ctx, cfg, logger)
	if err != nil {
		logger.Error("open resources", slog.Any("error", err))
		os.Exit(1)
	}
	defer res.Close()

	opts, ok := res.AsynqOpts(cfg)
	if !ok {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}
	if cfg.StoreBackend == app.BackendMemory {
		logger.Warn("worker is checking an in-memory store that no API process shares")
	}

	integrityJob := jobs.NewLedgerIntegrityJob(res.Store, logger, jobmetrics.NewMetrics(prometheus.DefaultRegisterer))
	cron, err := jobs.IntegrityCron(cfg.IntegrityCron, cfg.IntegrityStores)
	if err != nil {
		logger.Error("build integrity schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   opts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("scheduled_stores", len(cron)), slog.String("cron", cfg.IntegrityCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
