// Package money holds the decimal arithmetic used for purchase order totals.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeTotal indicates header discounts exceed the order value.
	ErrNegativeTotal = errors.New("money: total would be negative")
	// ErrNegativeAmount indicates a money or quantity field below zero.
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	// ErrPercentageRange indicates a percentage outside 0..100.
	ErrPercentageRange = errors.New("money: percentage must be between 0 and 100")
	// ErrTooPrecise indicates more decimal places than Scale.
	ErrTooPrecise = errors.New("money: at most 4 decimal places are allowed")
	// ErrOutOfRange indicates a magnitude the NUMERIC(18,4) columns cannot hold.
	ErrOutOfRange = errors.New("money: value exceeds 14 integer digits")
)

// Scale is the number of decimal places stored for quantities and amounts.
const Scale int32 = 4

var (
	hundred = decimal.NewFromInt(100)
	// limit is 10^14, the first magnitude NUMERIC(18,4) rejects.
	limit = decimal.New(1, 14)
)

// Line is the priced part of an order line.
type Line struct {
	Quantity           decimal.Decimal
	UnitCost           decimal.Decimal
	DiscountPercentage *decimal.Decimal
	DiscountAmount     decimal.Decimal
}

// Totals summarises an order header.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Shipping decimal.Decimal `json:"shipping_cost"`
	Discount decimal.Decimal `json:"discount_amount"`
	Total    decimal.Decimal `json:"total"`
}

// Gross returns qty × cost.
func Gross(qty, cost decimal.Decimal) decimal.Decimal {
	return qty.Mul(cost)
}

// LineDiscount returns qty × cost × pct / 100 rounded half up to Scale.
func LineDiscount(qty, cost, pct decimal.Decimal) decimal.Decimal {
	return qty.Mul(cost).Mul(pct).Div(hundred).Round(Scale)
}

// LineTotal returns qty × cost − discount rounded half up to Scale, so the stored
// line totals always add up to the stored subtotal.
func LineTotal(qty, cost, discount decimal.Decimal) decimal.Decimal {
	return Gross(qty, cost).Sub(discount).Round(Scale)
}

// Representable reports whether d fits a NUMERIC(18,4) column without rounding.
func Representable(d decimal.Decimal) error {
	if !d.Equal(d.Round(Scale)) {
		return ErrTooPrecise
	}
	if d.Abs().GreaterThanOrEqual(limit) {
		return ErrOutOfRange
	}
	return nil
}

// Discount resolves the effective discount of a line. A percentage, when present,
// always wins over an explicit amount.
func (l Line) Discount() decimal.Decimal {
	if l.DiscountPercentage != nil {
		return LineDiscount(l.Quantity, l.UnitCost, *l.DiscountPercentage)
	}
	return l.DiscountAmount
}

// Total returns the line total after discount.
func (l Line) Total() decimal.Decimal {
	return LineTotal(l.Quantity, l.UnitCost, l.Discount())
}

// Validate checks the ranges and precision of a line.
func (l Line) Validate() error {
	if err := NonNegative(l.Quantity); err != nil {
		return err
	}
	if err := NonNegative(l.UnitCost); err != nil {
		return err
	}
	if Gross(l.Quantity, l.UnitCost).GreaterThanOrEqual(limit) {
		return ErrOutOfRange
	}
	if l.DiscountPercentage != nil {
		return Percentage(*l.DiscountPercentage)
	}
	if err := NonNegative(l.DiscountAmount); err != nil {
		return err
	}
	if l.DiscountAmount.GreaterThan(Gross(l.Quantity, l.UnitCost)) {
		return errors.New("money: discount exceeds line value")
	}
	return nil
}

// Sum adds values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// NonNegative reports ErrNegativeAmount for d < 0 and the Representable errors.
func NonNegative(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	return Representable(d)
}

// Percentage reports ErrPercentageRange when d is outside 0..100.
func Percentage(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return ErrPercentageRange
	}
	if !d.Equal(d.Round(Scale)) {
		return ErrTooPrecise
	}
	return nil
}

// ComputeTotals derives header totals from lines. Line values are already at Scale,
// so the totals are exact sums with no further rounding.
func ComputeTotals(lines []Line, tax, shipping, discount decimal.Decimal) (Totals, error) {
	for _, v := range []decimal.Decimal{tax, shipping, discount} {
		if err := NonNegative(v); err != nil {
			return Totals{}, err
		}
	}
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total())
	}
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	t := Totals{Subtotal: subtotal, Tax: tax, Shipping: shipping, Discount: discount, Total: total}
	if total.IsNegative() {
		return t, ErrNegativeTotal
	}
	if subtotal.GreaterThanOrEqual(limit) || total.GreaterThanOrEqual(limit) {
		return t, ErrOutOfRange
	}
	return t, nil
}
