// Package core holds the expense domain: the record type, input validation
// and amount handling.
//
// Amounts are stored as float64 to keep the persisted JSON shape, but every
// parse and format step goes through shopspring/decimal so that text input
// and two-decimal rendering do not pick up binary rounding noise.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a decimal number such as "3.50", "-2" or "1e3".
// Surrounding whitespace is ignored. NaN, infinities and values that do not
// fit a float64 are rejected with ErrInvalidAmount.
//
// decimal only checks the syntax. Conversion must not go through
// decimal.Float64: it expands 10^|exp| as a big.Int.
//
// Examples:
//
//	ParseAmount("3.50") -> 3.5, nil
//	ParseAmount(" 12 ") -> 12, nil
//	ParseAmount("abc")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if _, err := decimal.NewFromString(s); err != nil {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// AmountDecimal converts a stored amount back to a decimal for arithmetic.
func AmountDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(f float64) string {
	return AmountDecimal(f).StringFixed(2)
}
