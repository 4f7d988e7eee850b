package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurchaseOrderSent notifies the supplier that a purchase order was sent.
	TaskPurchaseOrderSent = "procurement:po_sent"
	// TaskReceiptCompleted notifies staff that a purchase order was fully received.
	TaskReceiptCompleted = "procurement:receipt_completed"
	// TaskInventoryReconcile re-applies pending movements of a goods receipt.
	TaskInventoryReconcile = "inventory:reconcile"
)

// PurchaseOrderSentPayload describes a sent purchase order.
type PurchaseOrderSentPayload struct {
	POID       int64     `json:"po_id"`
	PONumber   string    `json:"po_number"`
	SupplierID int64     `json:"supplier_id"`
	Total      string    `json:"total"`
	SentAt     time.Time `json:"sent_at"`
}

// ReceiptCompletedPayload describes the receipt that completed a purchase order.
type ReceiptCompletedPayload struct {
	POID             int64  `json:"po_id"`
	PONumber         string `json:"po_number"`
	ReceiptID        int64  `json:"receipt_id"`
	GRNNumber        string `json:"grn_number"`
	InspectionStatus string `json:"inspection_status"`
}

// InventoryReconcilePayload identifies a receipt whose movements must be applied.
type InventoryReconcilePayload struct {
	POID      int64 `json:"po_id"`
	ReceiptID int64 `json:"receipt_id"`
}

// NewPurchaseOrderSentTask constructs an Asynq task.
func NewPurchaseOrderSentTask(payload PurchaseOrderSentPayload) (*asynq.Task, error) {
	return newTask(TaskPurchaseOrderSent, payload, asynq.MaxRetry(5))
}

// NewReceiptCompletedTask constructs an Asynq task.
func NewReceiptCompletedTask(payload ReceiptCompletedPayload) (*asynq.Task, error) {
	return newTask(TaskReceiptCompleted, payload, asynq.MaxRetry(5))
}

// NewInventoryReconcileTask constructs a reconcile task. Only one task per receipt
// can be queued at a time.
func NewInventoryReconcileTask(payload InventoryReconcilePayload) (*asynq.Task, error) {
	return newTask(TaskInventoryReconcile, payload,
		asynq.MaxRetry(10),
		asynq.Unique(10*time.Minute),
	)
}

func newTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)
	return asynq.NewTask(taskType, body, opts...), nil
}
