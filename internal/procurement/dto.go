package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/inventory"
)

// ItemInput describes one ordered line.
type ItemInput struct {
	InventoryItemID    int64            `json:"inventory_item_id" validate:"required,gt=0"`
	QuantityOrdered    decimal.Decimal  `json:"quantity_ordered"`
	UnitCost           decimal.Decimal  `json:"unit_cost"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
	Notes              string           `json:"notes" validate:"max=1000"`
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	SupplierID           int64           `json:"supplier_id" validate:"required,gt=0"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	PaymentDueDate       *time.Time      `json:"payment_due_date"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	ShippingCost         decimal.Decimal `json:"shipping_cost"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	Notes                string          `json:"notes" validate:"max=2000"`
	Terms                string          `json:"terms" validate:"max=2000"`
	Items                []ItemInput     `json:"items" validate:"dive"`
}

// UpdateInput replaces the editable fields of a draft. Version, when set, must match.
type UpdateInput struct {
	CreateInput
	Version *int64 `json:"version"`
}

// CancelInput carries the cancellation reason.
type CancelInput struct {
	Reason string `json:"reason"`
}

// PaymentStatusInput carries the new payment status.
type PaymentStatusInput struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// ReceiveLineInput is one disposition of a receipt submission.
type ReceiveLineInput struct {
	POItemID         int64           `json:"po_item_id" validate:"required,gt=0"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	QualityStatus    QualityStatus   `json:"quality_status"`
	Notes            string          `json:"notes" validate:"max=1000"`
}

// ReceiveInput is a goods receipt submission. InspectionStatus overrides the derived value.
type ReceiveInput struct {
	Lines            []ReceiveLineInput `json:"lines" validate:"dive"`
	InspectionStatus *InspectionStatus  `json:"inspection_status"`
	QualityNotes     string             `json:"quality_notes" validate:"max=2000"`
	Notes            string             `json:"notes" validate:"max=2000"`
}

// ReceiptResult is returned by SubmitReceipt.
type ReceiptResult struct {
	Receipt       GoodsReceipt          `json:"receipt"`
	PurchaseOrder PurchaseOrder         `json:"purchase_order"`
	Movements     []inventory.Movement  `json:"movements"`
	Inventory     inventory.ApplyResult `json:"inventory"`
	// ReconcilePending is set when the gateway call failed and a retry was scheduled.
	ReconcilePending bool `json:"reconcile_pending"`
}
