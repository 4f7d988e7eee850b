package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/purchasing/internal/jobs"
)

// NotificationJob hands purchase order notifications to the delivery channel.
// Delivery itself belongs to the notification collaborator; the job records the
// request so it is visible in logs and job metrics.
type NotificationJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationJob wires dependencies for notification handlers.
func NewNotificationJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationJob{Logger: logger, Metrics: metrics}
}

// HandlePurchaseOrderSent processes TaskPurchaseOrderSent tasks.
func (j *NotificationJob) HandlePurchaseOrderSent(ctx context.Context, t *asynq.Task) error {
	var payload PurchaseOrderSentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.POID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskPurchaseOrderSent)
	j.Logger.Info("supplier notification requested",
		slog.Int64("po_id", payload.POID),
		slog.String("po_number", payload.PONumber),
		slog.Int64("supplier_id", payload.SupplierID),
		slog.String("total", payload.Total))
	return tracker.End(nil)
}

// HandleReceiptCompleted processes TaskReceiptCompleted tasks.
func (j *NotificationJob) HandleReceiptCompleted(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ReceiptID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskReceiptCompleted)
	j.Logger.Info("receipt completion notification requested",
		slog.Int64("po_id", payload.POID),
		slog.String("po_number", payload.PONumber),
		slog.Int64("receipt_id", payload.ReceiptID),
		slog.String("grn_number", payload.GRNNumber),
		slog.String("inspection_status", payload.InspectionStatus))
	return tracker.End(nil)
}
