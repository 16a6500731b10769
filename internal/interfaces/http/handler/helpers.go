package handler

import (
	"time"

	"github.com/constructora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// parseAmount parses a wire amount string into a decimal
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_INPUT", "Amount must be a decimal number")
	}
	return d, nil
}

// parseOptionalAmount parses an amount that may be absent
func parseOptionalAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate accepts both date-only and RFC 3339 timestamps
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, shared.NewDomainError("INVALID_INPUT", "Date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

// parseOptionalDate parses a date that may be absent
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
