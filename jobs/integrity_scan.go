package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Scanner runs one integrity pass.
type Scanner interface {
	Scan(ctx context.Context) (integrity.Report, error)
}

// IntegrityScanJob runs the ledger integrity scan and exports its findings.
type IntegrityScanJob struct {
	scanner Scanner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(scanner Scanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityScanJob{scanner: scanner, logger: logger, metrics: metrics}
}

// Handle executes the scan. Violations are reported, not returned as errors,
// so asynq does not retry a scan that ran to completion.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.scanner == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics.Track(TaskLedgerIntegrityScan)
	logger := j.logger.With(slog.String("job", TaskLedgerIntegrityScan))
	if payload.RequestedBy != "" {
		logger = logger.With(slog.String("requested_by", payload.RequestedBy))
	}
	logger.Info("starting integrity scan")

	report, err := j.scanner.Scan(ctx)
	if err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	for check, count := range report.Counts() {
		j.metrics.AddViolations(check, count)
	}
	level := slog.LevelInfo
	if !report.Clean() {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "completed integrity scan",
		slog.Int("violations", len(report.Violations)),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return tracker.End(nil)
}

// KeyCleaner purges idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// DefaultIdempotencyRetention is used when the payload omits a retention.
const DefaultIdempotencyRetention = 30 * 24 * time.Hour

// IdempotencyCleanupJob deletes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	keys    KeyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{keys: keys, logger: logger, metrics: metrics}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultIdempotencyRetention
	}
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	if err := j.keys.Cleanup(ctx, payload.Retention); err != nil {
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("idempotency keys purged", slog.Duration("retention", payload.Retention))
	return tracker.End(nil)
}
