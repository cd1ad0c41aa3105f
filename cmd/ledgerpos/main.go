package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerpos/ledgerpos/cmd/ledgerpos/cli"
	"github.com/ledgerpos/ledgerpos/internal/app"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
	"github.com/ledgerpos/ledgerpos/internal/masterdata"
	"github.com/ledgerpos/ledgerpos/internal/observability"
	"github.com/ledgerpos/ledgerpos/internal/shared"
	"github.com/ledgerpos/ledgerpos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := cli.Run(ctx, cfg.RedisAddr, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ledgerpos", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	res, err := app.OpenResources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	metrics := observability.NewMetrics()
	sessions := ledger.NewSessions(res.Store, logger, ledger.SessionsConfig{
		Service: ledger.ServiceConfig{
			MaxAttempts: cfg.LedgerCommitAttempts,
			Metrics:     metrics,
		},
		MaxSessions: cfg.SessionMax,
		IdleTTL:     cfg.SessionIdleTTL,
	})
	defer sessions.Close()

	var (
		idempotency ledger.IdempotencyPort
		enqueuer    ledger.IntegrityEnqueuer
		inspector   *asynq.Inspector
	)
	if res.Redis != nil {
		idempotency = shared.NewIdempotencyStore(res.Redis, cfg.IdempotencyTTL)
	}
	if opts, ok := res.AsynqOpts(cfg); ok {
		client, err := jobs.NewClient(opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		enqueuer = client

		inspector = asynq.NewInspector(opts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledger.NewHandler(logger, sessions, idempotency, enqueuer),
		MasterDataHandler: masterdata.NewHandler(logger, masterdata.NewService(res.Store, sessions)),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
