// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals with two decimal places. They are
// persisted as integer cents and rendered in Brazilian notation.
package core

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount into a decimal with two places.
//
// It accepts a dot (1234.56) or a comma (1234,56) as decimal separator and
// the grouped Brazilian form (1.234,56). The value is rounded half-up to
// cents. Negative values and malformed input return ErrInvalidAmount. Zero
// is a valid amount.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("12,345")   -> 12.35 (rounds up)
//	ParseAmount("12.344")   -> 12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	switch {
	case strings.Contains(s, ","):
		// comma is the decimal separator, dots can only group thousands
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		intPart, frac, _ := strings.Cut(s, ",")
		if strings.Contains(frac, ".") || !validGrouping(intPart) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(intPart, ".", "") + "." + frac
	case strings.Count(s, ".") > 1:
		if !validGrouping(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ".", "")
	}

	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// validGrouping checks dot-grouped thousands like 1.234.567. An ungrouped
// integer is also valid.
func validGrouping(s string) bool {
	if !strings.Contains(s, ".") {
		return true
	}
	groups := strings.Split(s, ".")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// MaxAmount is the largest amount a single entry or opening balance may
// carry. A year of such entries still fits in int64 cents.
var MaxAmount = decimal.New(1, 13)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ValidateAmount accepts non-negative values up to MaxAmount with at most two
// decimal places.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ToCents returns the amount as integer cents, rounding half-up. Amounts
// whose cents do not fit in int64 return ErrInvalidAmount.
func ToCents(d decimal.Decimal) (int64, error) {
	c := d.Round(2).Shift(2)
	if c.Abs().GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return c.IntPart(), nil
}

// FromCents builds an amount from integer cents.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// FormatBRL renders an amount as "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
