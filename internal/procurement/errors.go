package procurement

import "github.com/odyssey-erp/purchasing/internal/shared"

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = shared.NewDomainError(shared.ErrNotFound, "PO_NOT_FOUND", "purchase order not found")
	// ErrReceiptNotFound indicates the goods receipt does not exist on the purchase order.
	ErrReceiptNotFound = shared.NewDomainError(shared.ErrNotFound, "RECEIPT_NOT_FOUND", "goods receipt not found")

	// ErrEmptyItems indicates a purchase order without items.
	ErrEmptyItems = shared.NewDomainError(shared.ErrValidation, "EMPTY_ITEMS", "purchase order requires at least one item")
	// ErrInvalidQuantity indicates a non positive ordered quantity or a negative received quantity.
	ErrInvalidQuantity = shared.NewDomainError(shared.ErrValidation, "INVALID_QUANTITY", "invalid quantity")
	// ErrInvalidAmount indicates a negative money field or an out of range discount.
	ErrInvalidAmount = shared.NewDomainError(shared.ErrValidation, "INVALID_AMOUNT", "invalid amount")
	// ErrNegativeTotal indicates header discounts exceeding the order value.
	ErrNegativeTotal = shared.NewDomainError(shared.ErrValidation, "NEGATIVE_TOTAL", "purchase order total must not be negative")
	// ErrSupplierBlocked indicates a blocked supplier on create or draft update.
	ErrSupplierBlocked = shared.NewDomainError(shared.ErrValidation, "SUPPLIER_BLOCKED", "supplier is blocked")
	// ErrUnknownSupplier indicates a supplier id that does not resolve.
	ErrUnknownSupplier = shared.NewDomainError(shared.ErrValidation, "UNKNOWN_SUPPLIER", "supplier does not exist")
	// ErrCancelReasonRequired indicates an empty cancellation reason.
	ErrCancelReasonRequired = shared.NewDomainError(shared.ErrValidation, "CANCEL_REASON_REQUIRED", "cancellation reason is required")
	// ErrInvalidFilter indicates a malformed or inverted list filter.
	ErrInvalidFilter = shared.NewDomainError(shared.ErrValidation, "INVALID_FILTER", "invalid purchase order filter")
	// ErrInvalidPaymentStatus indicates an unknown payment status.
	ErrInvalidPaymentStatus = shared.NewDomainError(shared.ErrValidation, "INVALID_PAYMENT_STATUS", "payment status must be pending, partial or paid")

	// ErrEmptyReceipt indicates a receipt without lines or without any received quantity.
	ErrEmptyReceipt = shared.NewDomainError(shared.ErrValidation, "EMPTY_RECEIPT", "goods receipt requires at least one line with a received quantity")
	// ErrUnknownPOItem indicates a receipt line referencing an item of another purchase order.
	ErrUnknownPOItem = shared.NewDomainError(shared.ErrValidation, "UNKNOWN_PO_ITEM", "item does not belong to purchase order")
	// ErrInvalidQualityStatus indicates an unknown disposition.
	ErrInvalidQualityStatus = shared.NewDomainError(shared.ErrValidation, "INVALID_QUALITY_STATUS", "quality status must be good, damaged or rejected")
	// ErrInvalidInspectionStatus indicates an unknown inspection override.
	ErrInvalidInspectionStatus = shared.NewDomainError(shared.ErrValidation, "INVALID_INSPECTION_STATUS", "inspection status must be passed, partial or failed")
	// ErrOverReceipt indicates more quantity than remains on the item.
	ErrOverReceipt = shared.NewDomainError(shared.ErrValidation, "OVER_RECEIPT", "received quantity exceeds remaining quantity")

	// ErrCannotApprove is returned when approving outside draft.
	ErrCannotApprove = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_APPROVE", "purchase order can only be approved from draft")
	// ErrCannotSend is returned when sending outside approved.
	ErrCannotSend = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_SEND", "purchase order can only be sent once approved")
	// ErrCannotCancel is returned when cancelling outside draft or approved.
	ErrCannotCancel = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_CANCEL", "purchase order can only be cancelled from draft or approved")
	// ErrCannotEdit is returned when editing or deleting outside draft.
	ErrCannotEdit = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_EDIT", "only draft purchase orders can be changed")
	// ErrCannotReceive is returned when receiving outside sent or partially received.
	ErrCannotReceive = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_RECEIVE", "goods can only be received against a sent purchase order")
	// ErrCannotChangePayment is returned when the payment status is changed on a draft or cancelled PO.
	ErrCannotChangePayment = shared.NewDomainError(shared.ErrInvalidState, "CANNOT_CHANGE_PAYMENT", "payment status cannot change on draft or cancelled purchase orders")

	// ErrVersionConflict indicates the purchase order changed since it was read.
	ErrVersionConflict = shared.NewDomainError(shared.ErrConflict, "VERSION_CONFLICT", "purchase order was modified concurrently")
	// ErrPOLocked indicates another request holds the purchase order lock.
	ErrPOLocked = shared.NewDomainError(shared.ErrConflict, "PO_LOCKED", "purchase order is being modified by another request")

	// ErrActorRequired indicates a mutating call without an acting user.
	ErrActorRequired = shared.NewDomainError(shared.ErrUnauthenticated, "ACTOR_REQUIRED", "acting user is required")
)
