// Package core provides money parsing and handling utilities.
//
// Monetary amounts are stored as integer cents; parsing and rounding of
// user-supplied decimal strings goes through shopspring/decimal to avoid
// floating-point drift.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third decimal place. Both dot (12.34) and comma (12,34) separators are
// accepted. Negative amounts are rejected; zero is allowed (a record may
// carry produce only).
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || !cents.BigInt().IsInt64() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// ParseQuantity converts a decimal string to a produce quantity. Negative
// quantities are rejected.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidQuantity
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidQuantity
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidQuantity
	}
	return d, nil
}

// Decimal returns the amount as an exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount as a plain decimal string ("12.34").
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
