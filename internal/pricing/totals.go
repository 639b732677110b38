package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxTaxRateBps caps the tax rate at 100%.
const MaxTaxRateBps = 10000

// OrderTotals adds order-level tax on top of a cart summary.
type OrderTotals struct {
	Subtotal   Money
	TaxRateBps int
	Tax        Money
	GrandTotal Money
}

// ComputeOrderTotals applies taxRateBps (basis points) to the discounted cart total.
func ComputeOrderTotals(summary CartSummary, taxRateBps int) (OrderTotals, error) {
	if taxRateBps < 0 || taxRateBps > MaxTaxRateBps {
		return OrderTotals{}, fmt.Errorf("%w: tax rate %d bps", ErrInvalidInput, taxRateBps)
	}
	subtotal := summary.FinalTotal
	tax := subtotal.Mul(decimal.NewFromInt(int64(taxRateBps))).Shift(-4).RoundBank(CurrencyScale)
	return OrderTotals{
		Subtotal:   subtotal,
		TaxRateBps: taxRateBps,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax),
	}, nil
}
