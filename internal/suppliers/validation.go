package suppliers

import (
	"strconv"
	"strings"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

// PaymentTermsCOD is cash on delivery.
const PaymentTermsCOD = "COD"

// ParsePaymentTerms normalises terms and returns the credit days, zero for COD.
func ParsePaymentTerms(raw string) (string, int, error) {
	terms := strings.ToUpper(strings.TrimSpace(raw))
	if terms == PaymentTermsCOD {
		return terms, 0, nil
	}
	days, ok := strings.CutPrefix(terms, "NET_")
	if !ok {
		days, ok = strings.CutPrefix(terms, "NET-")
	}
	if !ok {
		return "", 0, ErrInvalidPaymentTerms
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 1 || n > 365 {
		return "", 0, ErrInvalidPaymentTerms
	}
	return "NET_" + strconv.Itoa(n), n, nil
}

func (s *Service) validate(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	terms, _, err := ParsePaymentTerms(in.PaymentTerms)
	if err != nil {
		return err
	}
	in.PaymentTerms = terms
	if in.CreditLimit != nil && in.CreditLimit.IsNegative() {
		return ErrInvalidCreditLimit
	}
	if in.Rating != nil && (*in.Rating < 0 || *in.Rating > 5) {
		return ErrInvalidRating
	}
	if in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
