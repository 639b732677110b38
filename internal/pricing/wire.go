package pricing

import "encoding/json"

// DiscountView is the wire form of a discount.
type DiscountView struct {
	Kind  DiscountKind `json:"kind"`
	Value string       `json:"value"`
}

// DescribeDiscount returns nil for a nil discount.
func DescribeDiscount(d Discount) *DiscountView {
	switch v := d.(type) {
	case Percentage:
		return &DiscountView{Kind: KindPercentage, Value: v.Percent.String()}
	case FixedAmount:
		return &DiscountView{Kind: KindFixedAmount, Value: FormatMoney(v.Amount)}
	default:
		return nil
	}
}

type breakdownJSON struct {
	UnitPrice      string        `json:"unitPrice"`
	Discount       *DiscountView `json:"discount,omitempty"`
	DiscountAmount string        `json:"discountAmount"`
	FinalUnitPrice string        `json:"finalUnitPrice"`
	Quantity       int           `json:"quantity"`
	LineTotal      string        `json:"lineTotal"`
	LineDiscount   string        `json:"lineDiscount"`
	FinalLineTotal string        `json:"finalLineTotal"`
}

// MarshalJSON renders money fields as fixed two-decimal strings.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(breakdownJSON{
		UnitPrice:      FormatMoney(b.UnitPrice),
		Discount:       DescribeDiscount(b.Discount),
		DiscountAmount: FormatMoney(b.DiscountAmount),
		FinalUnitPrice: FormatMoney(b.FinalUnitPrice),
		Quantity:       b.Quantity,
		LineTotal:      FormatMoney(b.LineTotal),
		LineDiscount:   FormatMoney(b.LineDiscount),
		FinalLineTotal: FormatMoney(b.FinalLineTotal),
	})
}

type summaryJSON struct {
	TotalItems    int    `json:"totalItems"`
	TotalPrice    string `json:"totalPrice"`
	TotalDiscount string `json:"totalDiscount"`
	FinalTotal    string `json:"finalTotal"`
}

func (s CartSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		TotalItems:    s.TotalItems,
		TotalPrice:    FormatMoney(s.TotalPrice),
		TotalDiscount: FormatMoney(s.TotalDiscount),
		FinalTotal:    FormatMoney(s.FinalTotal),
	})
}

type totalsJSON struct {
	Subtotal   string `json:"subtotal"`
	TaxRateBps int    `json:"taxRateBps"`
	Tax        string `json:"tax"`
	GrandTotal string `json:"grandTotal"`
}

func (t OrderTotals) MarshalJSON() ([]byte, error) {
	return json.Marshal(totalsJSON{
		Subtotal:   FormatMoney(t.Subtotal),
		TaxRateBps: t.TaxRateBps,
		Tax:        FormatMoney(t.Tax),
		GrandTotal: FormatMoney(t.GrandTotal),
	})
}
