package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound movement.
	MovementTypeIn MovementType = "in"
)

// ReasonPurchaseReceipt marks movements produced by goods receipts.
const ReasonPurchaseReceipt = "purchase_receipt"

// Movement is a stock increase requested by a goods receipt line.
// ReceiptLineID is the idempotency key.
type Movement struct {
	ID            int64           `json:"id"`
	ReceiptLineID int64           `json:"receipt_line_id"`
	ReceiptID     int64           `json:"receipt_id"`
	POID          int64           `json:"po_id"`
	ItemID        int64           `json:"inventory_item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Type          MovementType    `json:"type"`
	Reason        string          `json:"reason"`
	Reference     string          `json:"reference"`
	ActorID       int64           `json:"actor_id"`
	CreatedAt     time.Time       `json:"created_at"`
	AppliedAt     *time.Time      `json:"applied_at,omitempty"`
}

// IdempotencyKey returns the key guarding a single application of m. It is a
// name based UUID of the receipt line so replays always derive the same key.
func (m Movement) IdempotencyKey() string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", ReasonPurchaseReceipt, m.ReceiptLineID))).String()
}

// Validate checks the movement before it touches stock.
func (m Movement) Validate() error {
	if m.ReceiptLineID <= 0 || m.ItemID <= 0 {
		return ErrInvalidMovement
	}
	if !m.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if m.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}

// Balance summarises stock per inventory item.
type Balance struct {
	ItemID       int64           `json:"inventory_item_id"`
	Quantity     decimal.Decimal `json:"quantity_on_hand"`
	AvgCost      decimal.Decimal `json:"average_cost"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
	LowStock     bool            `json:"low_stock"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockCardEntry describes one row of an item's stock card.
type StockCardEntry struct {
	ID          int64           `json:"id"`
	ItemID      int64           `json:"inventory_item_id"`
	MovementID  int64           `json:"movement_id"`
	RefKey      string          `json:"ref_key"`
	Reference   string          `json:"reference"`
	POID        int64           `json:"po_id"`
	ReceiptID   int64           `json:"receipt_id"`
	QtyIn       decimal.Decimal `json:"qty_in"`
	QtyOut      decimal.Decimal `json:"qty_out"`
	BalanceQty  decimal.Decimal `json:"balance_qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BalanceCost decimal.Decimal `json:"balance_cost"`
	Note        string          `json:"note"`
	PostedAt    time.Time       `json:"posted_at"`
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	ItemID int64
	From   time.Time
	To     time.Time
	Limit  int
}

// ApplyResult reports what a gateway call did.
type ApplyResult struct {
	Applied    int              `json:"applied"`
	Duplicates int              `json:"duplicates"`
	Entries    []StockCardEntry `json:"entries"`
}

// ErrBalanceNotFound indicates missing balance row.
var ErrBalanceNotFound = errors.New("inventory balance not found")

var (
	// ErrItemNotFound indicates an inventory item without stock history.
	ErrItemNotFound = shared.NewDomainError(shared.ErrNotFound, "INVENTORY_ITEM_NOT_FOUND", "inventory item not found")
	// ErrInvalidMovement indicates a movement without receipt line or item.
	ErrInvalidMovement = shared.NewDomainError(shared.ErrValidation, "INVALID_MOVEMENT", "inventory: movement requires receipt line and item")
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = shared.NewDomainError(shared.ErrValidation, "INVALID_QUANTITY", "inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates invalid cost value.
	ErrInvalidUnitCost = shared.NewDomainError(shared.ErrValidation, "INVALID_UNIT_COST", "inventory: unit cost must be >= 0")
)
