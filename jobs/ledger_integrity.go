package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
	jobmetrics "github.com/ledgerpos/ledgerpos/internal/jobs"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
)

// IntegrityReport summarises one integrity run.
type IntegrityReport struct {
	StoreID    string
	CheckedAt  time.Time
	Sales      int
	Payments   int
	Violations []ledger.Violation
}

// LedgerIntegrityJob loads a store snapshot and verifies the ledger invariants.
type LedgerIntegrityJob struct {
	Store   entitystore.Store
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(store entitystore.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	payload, err := decodeIntegrityPayload(t)
	if err != nil {
		j.logger().Warn("ledger integrity: bad payload", slog.Any("error", err))
		return fmt.Errorf("ledger integrity: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	_, err = j.Run(ctx, payload.StoreID)
	return err
}

// Run checks one store and returns the report. Violations are logged and
// counted but do not fail the run.
func (j *LedgerIntegrityJob) Run(ctx context.Context, storeID string) (IntegrityReport, error) {
	logger := j.logger().With(slog.String("store_id", storeID))
	logger.Info("starting ledger integrity check")

	audit, err := ledger.AuditStore(ctx, j.Store, storeID, logger)
	if err != nil {
		logger.Error("load ledger snapshot", slog.Any("error", err))
		return IntegrityReport{}, fmt.Errorf("ledger integrity: load %s: %w", storeID, err)
	}
	report := IntegrityReport{
		StoreID:    storeID,
		CheckedAt:  j.now(),
		Sales:      audit.Sales,
		Payments:   audit.Payments,
		Violations: audit.Violations,
	}

	byKind := make(map[string]int)
	for _, v := range report.Violations {
		byKind[v.Kind]++
		logger.Warn("ledger violation",
			slog.String("kind", v.Kind),
			slog.String("collection", v.Collection),
			slog.String("id", v.ID),
			slog.String("detail", v.Detail),
		)
	}
	for kind, count := range byKind {
		j.metrics().AddViolations(storeID, kind, count)
	}

	logger.Info("ledger integrity check completed",
		slog.Int("sales", report.Sales),
		slog.Int("payments", report.Payments),
		slog.Int("violations", len(report.Violations)),
	)
	return report, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
