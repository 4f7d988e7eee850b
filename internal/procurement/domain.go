package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/money"
)

// Status is the purchase order lifecycle status.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusApproved          Status = "approved"
	StatusSent              Status = "sent"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
	StatusCancelled         Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusSent, StatusPartiallyReceived, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusApproved || target == StatusCancelled
	case StatusApproved:
		return target == StatusSent || target == StatusCancelled
	case StatusSent, StatusPartiallyReceived:
		return target == StatusPartiallyReceived || target == StatusReceived
	default:
		return false
	}
}

// CanReceive reports whether goods may be received against a PO in status s.
func (s Status) CanReceive() bool {
	return s == StatusSent || s == StatusPartiallyReceived
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

// PaymentStatus is advanced by the payment collaborator, independent of Status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	return p == PaymentPending || p == PaymentPartial || p == PaymentPaid
}

// QualityStatus is the disposition of received quantity.
type QualityStatus string

const (
	QualityGood     QualityStatus = "good"
	QualityDamaged  QualityStatus = "damaged"
	QualityRejected QualityStatus = "rejected"
)

// Valid reports whether q is a known disposition.
func (q QualityStatus) Valid() bool {
	return q == QualityGood || q == QualityDamaged || q == QualityRejected
}

// InspectionStatus summarises a goods receipt.
type InspectionStatus string

const (
	InspectionPassed  InspectionStatus = "passed"
	InspectionPartial InspectionStatus = "partial"
	InspectionFailed  InspectionStatus = "failed"
)

// Valid reports whether i is a known inspection status.
func (i InspectionStatus) Valid() bool {
	return i == InspectionPassed || i == InspectionPartial || i == InspectionFailed
}

// PurchaseOrder is the aggregate root. Items are ordered by LineNo.
type PurchaseOrder struct {
	ID                   int64           `json:"id"`
	Number               string          `json:"po_number"`
	SupplierID           int64           `json:"supplier_id"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	PaymentDueDate       *time.Time      `json:"payment_due_date"`
	Status               Status          `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	ShippingCost         decimal.Decimal `json:"shipping_cost"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Total                decimal.Decimal `json:"total"`
	Notes                string          `json:"notes"`
	Terms                string          `json:"terms"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	CreatedBy            int64           `json:"created_by"`
	ApprovedBy           *int64          `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time      `json:"approved_at,omitempty"`
	SentBy               *int64          `json:"sent_by,omitempty"`
	SentAt               *time.Time      `json:"sent_at,omitempty"`
	CancelledBy          *int64          `json:"cancelled_by,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Items                []Item          `json:"items"`
	Receipts             []GoodsReceipt  `json:"receipts,omitempty"`
}

// Item is a purchase order line. The Quantity* read fields are sums over all receipts.
type Item struct {
	ID                 int64            `json:"id"`
	POID               int64            `json:"po_id"`
	LineNo             int              `json:"line_no"`
	InventoryItemID    int64            `json:"inventory_item_id"`
	QuantityOrdered    decimal.Decimal  `json:"quantity_ordered"`
	UnitCost           decimal.Decimal  `json:"unit_cost"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount"`
	LineTotal          decimal.Decimal  `json:"line_total"`
	Notes              string           `json:"notes"`
	QuantityGood       decimal.Decimal  `json:"quantity_good"`
	QuantityDamaged    decimal.Decimal  `json:"quantity_damaged"`
	QuantityRejected   decimal.Decimal  `json:"quantity_rejected"`
	QuantityRemaining  decimal.Decimal  `json:"quantity_remaining"`
}

// Accounted returns the quantity already dispositioned by receipts.
func (i Item) Accounted() decimal.Decimal {
	return money.Sum(i.QuantityGood, i.QuantityDamaged, i.QuantityRejected)
}

// Remaining returns the quantity still expected.
func (i Item) Remaining() decimal.Decimal {
	return i.QuantityOrdered.Sub(i.Accounted())
}

// FullyAccounted reports whether every ordered unit has a disposition.
func (i Item) FullyAccounted() bool {
	return i.Accounted().GreaterThanOrEqual(i.QuantityOrdered)
}

func (i Item) moneyLine() money.Line {
	return money.Line{
		Quantity:           i.QuantityOrdered,
		UnitCost:           i.UnitCost,
		DiscountPercentage: i.DiscountPercentage,
		DiscountAmount:     i.DiscountAmount,
	}
}

// addDisposition books received quantity against the item's running totals.
func (i *Item) addDisposition(status QualityStatus, qty decimal.Decimal) {
	switch status {
	case QualityGood:
		i.QuantityGood = i.QuantityGood.Add(qty)
	case QualityDamaged:
		i.QuantityDamaged = i.QuantityDamaged.Add(qty)
	case QualityRejected:
		i.QuantityRejected = i.QuantityRejected.Add(qty)
	}
	i.QuantityRemaining = i.Remaining()
}

// Recalculate derives item discounts, line totals and header totals from the items.
func (po *PurchaseOrder) Recalculate() error {
	lines := make([]money.Line, len(po.Items))
	for idx := range po.Items {
		item := &po.Items[idx]
		line := item.moneyLine()
		item.DiscountAmount = line.Discount()
		item.LineTotal = line.Total()
		item.QuantityRemaining = item.Remaining()
		lines[idx] = line
	}
	totals, err := money.ComputeTotals(lines, po.TaxAmount, po.ShippingCost, po.DiscountAmount)
	if err != nil {
		return err
	}
	po.Subtotal = totals.Subtotal
	po.Total = totals.Total
	return nil
}

// FullyReceived reports whether every item is fully accounted.
func (po PurchaseOrder) FullyReceived() bool {
	for _, item := range po.Items {
		if !item.FullyAccounted() {
			return false
		}
	}
	return len(po.Items) > 0
}

func (po PurchaseOrder) item(id int64) (*Item, bool) {
	for idx := range po.Items {
		if po.Items[idx].ID == id {
			return &po.Items[idx], true
		}
	}
	return nil, false
}

// GoodsReceipt records one delivery against a purchase order. Receipts are create-only.
type GoodsReceipt struct {
	ID                   int64            `json:"id"`
	Number               string           `json:"grn_number"`
	POID                 int64            `json:"po_id"`
	InspectionStatus     InspectionStatus `json:"inspection_status"`
	InspectionOverridden bool             `json:"inspection_overridden"`
	QualityNotes         string           `json:"quality_notes"`
	GeneralNotes         string           `json:"general_notes"`
	ReceivedBy           int64            `json:"received_by"`
	ReceivedAt           time.Time        `json:"received_at"`
	Lines                []ReceiptLine    `json:"lines"`
}

// ReceiptLine is the disposition of a quantity of one PO item.
type ReceiptLine struct {
	ID               int64           `json:"id"`
	ReceiptID        int64           `json:"receipt_id"`
	POItemID         int64           `json:"po_item_id"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	QualityStatus    QualityStatus   `json:"quality_status"`
	Notes            string          `json:"notes"`
}

// ListFilters narrows purchase order listings. From is inclusive and To exclusive
// on order_date.
type ListFilters struct {
	Status     Status
	SupplierID int64
	Search     string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
	SortBy     string
	SortDir    string
}
