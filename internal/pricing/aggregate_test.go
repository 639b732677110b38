package pricing

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleLines(t *testing.T) []Breakdown {
	t.Helper()
	inputs := []struct {
		unit     string
		qty      int
		discount Discount
	}{
		{"100.00", 3, pct("10")},
		{"50.00", 2, FixedAmount{Amount: money("60.00")}},
		{"19.99", 1, nil},
		{"0.05", 9, pct("33")},
		{"1234.56", 2, FixedAmount{Amount: money("34.56")}},
		{"10.05", 7, pct("50")},
	}
	lines := make([]Breakdown, 0, len(inputs))
	for _, in := range inputs {
		b, err := ComputeBreakdown(money(in.unit), in.qty, in.discount)
		require.NoError(t, err)
		lines = append(lines, b)
	}
	return lines
}

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil)
	require.Equal(t, 0, summary.TotalItems)
	requireMoney(t, "0.00", summary.TotalPrice)
	requireMoney(t, "0.00", summary.TotalDiscount)
	requireMoney(t, "0.00", summary.FinalTotal)
}

func TestAggregateTotals(t *testing.T) {
	lines := sampleLines(t)
	summary := Aggregate(lines[:2])

	require.Equal(t, 5, summary.TotalItems)
	requireMoney(t, "400.00", summary.TotalPrice)
	requireMoney(t, "130.00", summary.TotalDiscount)
	requireMoney(t, "270.00", summary.FinalTotal)
}

func TestAggregateFinalEqualsPriceMinusDiscount(t *testing.T) {
	summary := Aggregate(sampleLines(t))
	require.True(t, summary.FinalTotal.Equal(summary.TotalPrice.Sub(summary.TotalDiscount)))
}

func TestAggregateOrderIndependent(t *testing.T) {
	lines := sampleLines(t)
	want := Aggregate(lines)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]Breakdown(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Empty(t, cmp.Diff(want, Aggregate(shuffled)))
	}
}

func TestComputeOrderTotals(t *testing.T) {
	summary := Aggregate(sampleLines(t)[:1])
	totals, err := ComputeOrderTotals(summary, 1100)
	require.NoError(t, err)

	requireMoney(t, "270.00", totals.Subtotal)
	requireMoney(t, "29.70", totals.Tax)
	requireMoney(t, "299.70", totals.GrandTotal)

	_, err = ComputeOrderTotals(summary, -1)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = ComputeOrderTotals(summary, MaxTaxRateBps+1)
	require.ErrorIs(t, err, ErrInvalidInput)
}
