package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind names a discount variant in storage and on the wire.
type DiscountKind string

const (
	KindPercentage  DiscountKind = "percentage"
	KindFixedAmount DiscountKind = "fixed_amount"
)

var hundred = decimal.NewFromInt(100)

// Discount is the closed set of discounts the engine understands. Only
// Percentage and FixedAmount implement it.
type Discount interface {
	Kind() DiscountKind
	Value() decimal.Decimal
	sealed()
}

// Percentage reduces the unit price by Percent/100.
type Percentage struct {
	Percent decimal.Decimal
}

func (Percentage) Kind() DiscountKind { return KindPercentage }
func (p Percentage) Value() decimal.Decimal { return p.Percent }
func (Percentage) sealed() {}

// FixedAmount subtracts Amount from the unit price, clamped at zero.
type FixedAmount struct {
	Amount Money
}

func (FixedAmount) Kind() DiscountKind { return KindFixedAmount }
func (f FixedAmount) Value() decimal.Decimal { return f.Amount }
func (FixedAmount) sealed() {}

// NewDiscount builds and validates a discount from its stored kind and value.
func NewDiscount(kind DiscountKind, value decimal.Decimal) (Discount, error) {
	var d Discount
	switch kind {
	case KindPercentage:
		d = Percentage{Percent: value}
	case KindFixedAmount:
		d = FixedAmount{Amount: value}
	default:
		return nil, fmt.Errorf("%w: unknown discount kind %q", ErrInvalidInput, kind)
	}
	if err := ValidateDiscount(d); err != nil {
		return nil, err
	}
	return d, nil
}

// ValidateDiscount checks the value range of d. A nil discount is valid.
func ValidateDiscount(d Discount) error {
	switch v := d.(type) {
	case nil:
		return nil
	case Percentage:
		if v.Percent.IsNegative() || v.Percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage %s outside [0,100]", ErrInvalidInput, v.Percent)
		}
	case FixedAmount:
		if v.Amount.IsNegative() {
			return fmt.Errorf("%w: fixed amount %s is negative", ErrInvalidInput, v.Amount)
		}
	default:
		return fmt.Errorf("%w: unsupported discount %T", ErrInvalidInput, d)
	}
	return nil
}

// NormalizedPercent expresses d as a percentage of unitPrice, capped at 100.
// A fixed amount on a zero price counts as 100 when positive.
func NormalizedPercent(d Discount, unitPrice Money) decimal.Decimal {
	switch v := d.(type) {
	case Percentage:
		return decimal.Min(v.Percent, hundred)
	case FixedAmount:
		if !unitPrice.IsPositive() {
			if v.Amount.IsPositive() {
				return hundred
			}
			return decimal.Zero
		}
		return decimal.Min(v.Amount.Mul(hundred).Div(unitPrice), hundred)
	default:
		return decimal.Zero
	}
}
