package procurement

import (
	"context"
	"time"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/shared"
	"github.com/odyssey-erp/purchasing/internal/suppliers"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error)
	ListReceipts(ctx context.Context, poID int64) ([]GoodsReceipt, error)
	GetReceipt(ctx context.Context, poID, receiptID int64) (GoodsReceipt, error)
}

// TxRepository exposes transactional operations. GetPOForUpdate locks the header row
// and returns items with their received totals.
type TxRepository interface {
	NextPONumber(ctx context.Context, at time.Time) (string, error)
	NextGRNNumber(ctx context.Context, at time.Time) (string, error)
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error)
	UpdatePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error)
	DeletePO(ctx context.Context, id int64, expectedVersion int64) error
	InsertReceipt(ctx context.Context, receipt GoodsReceipt) (GoodsReceipt, error)
	StageMovements(ctx context.Context, movements []inventory.Movement) ([]inventory.Movement, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// SupplierPort resolves suppliers referenced by purchase orders.
type SupplierPort interface {
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// InventoryGateway applies stock movements produced by goods receipts.
type InventoryGateway interface {
	Apply(ctx context.Context, movements []inventory.Movement) (inventory.ApplyResult, error)
	ApplyPending(ctx context.Context, receiptID int64) (inventory.ApplyResult, error)
}

// Notifier requests supplier and staff notifications after commit.
type Notifier interface {
	PurchaseOrderSent(ctx context.Context, po PurchaseOrder) error
	ReceiptCompleted(ctx context.Context, po PurchaseOrder, receipt GoodsReceipt) error
}

// Reconciler schedules a later gateway retry for a receipt.
type Reconciler interface {
	EnqueueReconcile(ctx context.Context, poID, receiptID int64) error
}

// MetricsPort receives business counters.
type MetricsPort interface {
	POTransition(status string)
	ReceiptSubmitted(inspectionStatus string)
	LockFailed()
}
