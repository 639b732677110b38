package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of decimal places carried by Money.
const CurrencyScale = 2

// Money is a fixed-point currency amount.
type Money = decimal.Decimal

// RoundMoney normalises m to currency precision using round-half-to-even.
func RoundMoney(m Money) Money {
	return m.RoundBank(CurrencyScale)
}

// FormatMoney renders m with exactly two decimal places.
func FormatMoney(m Money) string {
	return m.StringFixed(CurrencyScale)
}

// ParseMoney parses a non-negative decimal string into Money.
func ParseMoney(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Money{}, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	m, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Money{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, value, err)
	}
	if m.IsNegative() {
		return Money{}, fmt.Errorf("%w: amount %q is negative", ErrInvalidInput, value)
	}
	return RoundMoney(m), nil
}

// MustParseMoney is ParseMoney for literals known to be valid.
func MustParseMoney(value string) Money {
	m, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}
