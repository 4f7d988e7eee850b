package suppliers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a supplier.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBlocked:
		return true
	}
	return false
}

// Supplier represents a supplier entity.
type Supplier struct {
	ID           int64            `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	ContactName  string           `json:"contact_name"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	PaymentTerms string           `json:"payment_terms"`
	CreditLimit  *decimal.Decimal `json:"credit_limit"`
	Rating       *int             `json:"rating"`
	Status       Status           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// CanSupply reports whether new purchase orders may reference the supplier.
func (s Supplier) CanSupply() bool {
	return s.Status != StatusBlocked
}

// Input carries the editable supplier fields.
type Input struct {
	Name         string           `json:"name" validate:"required,max=200"`
	ContactName  string           `json:"contact_name" validate:"max=200"`
	Email        string           `json:"email" validate:"omitempty,email"`
	Phone        string           `json:"phone" validate:"max=50"`
	Address      string           `json:"address" validate:"max=500"`
	PaymentTerms string           `json:"payment_terms" validate:"required"`
	CreditLimit  *decimal.Decimal `json:"credit_limit"`
	Rating       *int             `json:"rating"`
	Status       Status           `json:"status" validate:"omitempty,oneof=active inactive blocked"`
}

// StatusInput changes a supplier's status.
type StatusInput struct {
	Status Status `json:"status" validate:"required,oneof=active inactive blocked"`
	Reason string `json:"reason" validate:"max=500"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	Status  Status
	SortBy  string
	SortDir string
}
