package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	jobmetrics "github.com/odyssey-erp/purchasing/internal/jobs"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// ReceiptReconciler re-applies the staged movements of a receipt.
type ReceiptReconciler interface {
	ReconcileReceipt(ctx context.Context, poID, receiptID int64) (inventory.ApplyResult, error)
}

// ReconcileJob retries inventory application for receipts whose post-commit apply failed.
type ReconcileJob struct {
	Reconciler ReceiptReconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReconcileJob wires dependencies for the reconcile handler.
func NewReconcileJob(reconciler ReceiptReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle processes TaskInventoryReconcile tasks. Errors are returned so asynq retries
// with backoff; a receipt that no longer exists is not retried.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("inventory reconcile: handler not configured")
	}
	var payload InventoryReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ReceiptID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskInventoryReconcile)
	logger := j.Logger.With(slog.Int64("po_id", payload.POID), slog.Int64("receipt_id", payload.ReceiptID))

	res, err := j.Reconciler.ReconcileReceipt(ctx, payload.POID, payload.ReceiptID)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("reconcile target missing", slog.Any("error", err))
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if err != nil {
		logger.Error("reconcile receipt", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("receipt reconciled", slog.Int("applied", res.Applied), slog.Int("duplicates", res.Duplicates))
	return tracker.End(nil)
}
