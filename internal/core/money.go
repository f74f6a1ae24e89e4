// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents; decimal arithmetic is only used at the
// edges, when parsing user input and when splitting a sum by percentage.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var (
	ErrMissingAmount     = errors.New("amount is required")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

// maxCents keeps amounts well inside int64 after percentage multiplication.
const maxCents = 1 << 53

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Sub-cent digits
// are rounded half-up. Zero is a valid amount; negative values are not.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrMissingAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	if m.Cents > maxCents {
		return ErrInvalidAmount
	}
	return nil
}

// Percent returns pct percent of m, rounded half-up to the cent.
func (m Money) Percent(pct int) Money {
	v := decimal.NewFromInt(m.Cents).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0)
	return Money{Cents: v.IntPart()}
}

// String renders the amount with two decimals, e.g. "12.34".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}
