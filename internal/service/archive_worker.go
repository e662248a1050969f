package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// ArchiveWorker periodically exports settled history older than the retention
// window to blob storage.
type ArchiveWorker struct {
	archiver  domain.Archiver
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
}

// NewArchiveWorker creates an ArchiveWorker. A zero interval defaults to one
// hour and a zero retention to 90 days.
func NewArchiveWorker(archiver domain.Archiver, interval time.Duration, retentionDays int, logger *slog.Logger) *ArchiveWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &ArchiveWorker{
		archiver:  archiver,
		logger:    logger.With(slog.String("component", "archive_worker")),
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Run performs one archive cycle immediately and then one per interval until
// the context is cancelled. Cycle failures are logged and retried on the next
// tick.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ArchiveWorker) runOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.retention)

	txCount, err := w.archiver.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "transaction archive failed",
			slog.String("error", err.Error()),
		)
	}

	auditCount, err := w.archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "audit archive failed",
			slog.String("error", err.Error()),
		)
	}

	if txCount > 0 || auditCount > 0 {
		w.logger.InfoContext(ctx, "archive cycle complete",
			slog.Int64("transactions", txCount),
			slog.Int64("audit_entries", auditCount),
			slog.Time("cutoff", cutoff),
		)
	}
}
