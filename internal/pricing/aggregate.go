package pricing

import "github.com/shopspring/decimal"

// CartSummary totals the priced lines of one cart.
type CartSummary struct {
	TotalItems    int
	TotalPrice    Money
	TotalDiscount Money
	FinalTotal    Money
}

// Aggregate sums lines into a summary. Decimal addition is exact, so the
// result does not depend on line order.
func Aggregate(lines []Breakdown) CartSummary {
	summary := CartSummary{
		TotalPrice:    decimal.Zero,
		TotalDiscount: decimal.Zero,
		FinalTotal:    decimal.Zero,
	}
	for _, line := range lines {
		summary.TotalItems += line.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(line.LineTotal)
		summary.TotalDiscount = summary.TotalDiscount.Add(line.LineDiscount)
		summary.FinalTotal = summary.FinalTotal.Add(line.FinalLineTotal)
	}
	return summary
}
