package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput reports malformed numeric input such as a negative price.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Breakdown is the itemised price of one line.
type Breakdown struct {
	UnitPrice      Money
	Discount       Discount
	DiscountAmount Money
	FinalUnitPrice Money
	Quantity       int
	LineTotal      Money
	LineDiscount   Money
	FinalLineTotal Money
}

// ComputeBreakdown prices quantity units of unitPrice with an optional discount.
// Rounding happens once, on the final unit price; line amounts are exact
// multiples of it.
func ComputeBreakdown(unitPrice Money, quantity int, discount Discount) (Breakdown, error) {
	if unitPrice.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: unit price %s is negative", ErrInvalidInput, unitPrice)
	}
	if quantity < 1 {
		return Breakdown{}, fmt.Errorf("%w: quantity %d is below 1", ErrInvalidInput, quantity)
	}
	unit := RoundMoney(unitPrice)
	final, err := finalUnitPrice(unit, discount)
	if err != nil {
		return Breakdown{}, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	lineTotal := unit.Mul(qty)
	finalLineTotal := final.Mul(qty)
	return Breakdown{
		UnitPrice:      unit,
		Discount:       discount,
		DiscountAmount: unit.Sub(final),
		FinalUnitPrice: final,
		Quantity:       quantity,
		LineTotal:      lineTotal,
		LineDiscount:   lineTotal.Sub(finalLineTotal),
		FinalLineTotal: finalLineTotal,
	}, nil
}

func finalUnitPrice(unit Money, discount Discount) (Money, error) {
	if err := ValidateDiscount(discount); err != nil {
		return Money{}, err
	}
	switch d := discount.(type) {
	case nil:
		return unit, nil
	case Percentage:
		return unit.Mul(hundred.Sub(d.Percent)).Shift(-2).RoundBank(CurrencyScale), nil
	case FixedAmount:
		final := unit.Sub(RoundMoney(d.Amount))
		if final.IsNegative() {
			return decimal.Zero, nil
		}
		return final, nil
	default:
		return Money{}, fmt.Errorf("%w: unsupported discount %T", ErrInvalidInput, discount)
	}
}
