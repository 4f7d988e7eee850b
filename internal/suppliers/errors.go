package suppliers

import "github.com/odyssey-erp/purchasing/internal/shared"

var (
	// ErrNotFound indicates an unknown supplier id.
	ErrNotFound = shared.NewDomainError(shared.ErrNotFound, "SUPPLIER_NOT_FOUND", "supplier not found")
	// ErrInvalidPaymentTerms indicates terms other than COD or NET_<days>.
	ErrInvalidPaymentTerms = shared.NewDomainError(shared.ErrValidation, "INVALID_PAYMENT_TERMS", "payment terms must be COD or NET_<days> with 1-365 days")
	// ErrInvalidRating indicates a rating outside 0..5.
	ErrInvalidRating = shared.NewDomainError(shared.ErrValidation, "INVALID_RATING", "rating must be between 0 and 5")
	// ErrInvalidCreditLimit indicates a negative credit limit.
	ErrInvalidCreditLimit = shared.NewDomainError(shared.ErrValidation, "INVALID_CREDIT_LIMIT", "credit limit must not be negative")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = shared.NewDomainError(shared.ErrValidation, "INVALID_SUPPLIER_STATUS", "status must be active, inactive or blocked")
)
