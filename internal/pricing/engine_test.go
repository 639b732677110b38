package pricing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func money(v string) Money { return MustParseMoney(v) }

func pct(v string) Percentage { return Percentage{Percent: decimal.RequireFromString(v)} }

func requireMoney(t *testing.T, want string, got Money) {
	t.Helper()
	require.Equal(t, want, FormatMoney(got))
}

func TestComputeBreakdownPercentScenario(t *testing.T) {
	b, err := ComputeBreakdown(money("100.00"), 3, pct("10"))
	require.NoError(t, err)

	requireMoney(t, "90.00", b.FinalUnitPrice)
	requireMoney(t, "10.00", b.DiscountAmount)
	requireMoney(t, "300.00", b.LineTotal)
	requireMoney(t, "30.00", b.LineDiscount)
	requireMoney(t, "270.00", b.FinalLineTotal)
	require.Equal(t, 3, b.Quantity)
}

func TestComputeBreakdownFixedClampsAtZero(t *testing.T) {
	b, err := ComputeBreakdown(money("50.00"), 2, FixedAmount{Amount: money("60.00")})
	require.NoError(t, err)

	requireMoney(t, "0.00", b.FinalUnitPrice)
	requireMoney(t, "0.00", b.FinalLineTotal)
	requireMoney(t, "100.00", b.LineDiscount)
	requireMoney(t, "100.00", b.LineTotal)
}

func TestComputeBreakdownNoDiscountKeepsPrice(t *testing.T) {
	prices := []string{"0", "0.01", "9.99", "100", "12345.67"}
	for _, p := range prices {
		for qty := 1; qty <= 7; qty++ {
			unit := money(p)
			b, err := ComputeBreakdown(unit, qty, nil)
			require.NoError(t, err)
			require.True(t, b.FinalUnitPrice.Equal(unit), "price %s", p)
			require.True(t, b.FinalLineTotal.Equal(unit.Mul(decimal.NewFromInt(int64(qty)))), "price %s qty %d", p, qty)
			require.True(t, b.LineDiscount.IsZero())
			require.Nil(t, b.Discount)
		}
	}
}

func TestComputeBreakdownPercentBounds(t *testing.T) {
	prices := []string{"0", "0.01", "0.05", "19.99", "100.00", "7777.77"}
	for _, p := range prices {
		unit := money(p)
		for percent := 0; percent <= 100; percent += 5 {
			b, err := ComputeBreakdown(unit, 2, Percentage{Percent: decimal.NewFromInt(int64(percent))})
			require.NoError(t, err)
			require.False(t, b.FinalUnitPrice.IsNegative())
			require.True(t, b.FinalUnitPrice.LessThanOrEqual(unit), "price %s pct %d", p, percent)
			require.True(t, b.FinalLineTotal.Equal(b.FinalUnitPrice.Mul(decimal.NewFromInt(2))))
		}

		zero, err := ComputeBreakdown(unit, 1, pct("0"))
		require.NoError(t, err)
		require.True(t, zero.FinalUnitPrice.Equal(unit))

		full, err := ComputeBreakdown(unit, 1, pct("100"))
		require.NoError(t, err)
		require.True(t, full.FinalUnitPrice.IsZero())
	}
}

func TestComputeBreakdownBankersRounding(t *testing.T) {
	b, err := ComputeBreakdown(money("10.05"), 1, pct("50"))
	require.NoError(t, err)
	requireMoney(t, "5.02", b.FinalUnitPrice)

	b, err = ComputeBreakdown(money("10.15"), 1, pct("50"))
	require.NoError(t, err)
	requireMoney(t, "5.08", b.FinalUnitPrice)

	b, err = ComputeBreakdown(money("33.33"), 3, pct("12.5"))
	require.NoError(t, err)
	requireMoney(t, "29.16", b.FinalUnitPrice)
	requireMoney(t, "87.48", b.FinalLineTotal)
	requireMoney(t, "12.51", b.LineDiscount)
}

func TestComputeBreakdownFixedNeverNegative(t *testing.T) {
	unit := money("25.00")
	for _, v := range []string{"0", "0.01", "24.99", "25", "25.01", "1000"} {
		b, err := ComputeBreakdown(unit, 4, FixedAmount{Amount: money(v)})
		require.NoError(t, err)
		require.False(t, b.FinalUnitPrice.IsNegative(), "fixed %s", v)
		require.False(t, b.FinalLineTotal.IsNegative(), "fixed %s", v)
	}
}

func TestComputeBreakdownInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		unit     Money
		qty      int
		discount Discount
	}{
		{"negative price", decimal.RequireFromString("-0.01"), 1, nil},
		{"zero quantity", money("1"), 0, nil},
		{"negative quantity", money("1"), -2, nil},
		{"percent above 100", money("1"), 1, pct("100.01")},
		{"negative percent", money("1"), 1, Percentage{Percent: decimal.RequireFromString("-1")}},
		{"negative fixed", money("1"), 1, FixedAmount{Amount: decimal.RequireFromString("-5")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeBreakdown(tc.unit, tc.qty, tc.discount)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestComputeBreakdownIdempotent(t *testing.T) {
	first, err := ComputeBreakdown(money("19.99"), 5, pct("15"))
	require.NoError(t, err)
	second, err := ComputeBreakdown(money("19.99"), 5, pct("15"))
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second))

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestBreakdownJSONUsesFixedScale(t *testing.T) {
	b, err := ComputeBreakdown(money("100"), 3, pct("10"))
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"unitPrice":"100.00",
		"discount":{"kind":"percentage","value":"10"},
		"discountAmount":"10.00",
		"finalUnitPrice":"90.00",
		"quantity":3,
		"lineTotal":"300.00",
		"lineDiscount":"30.00",
		"finalLineTotal":"270.00"
	}`, string(raw))
}

func TestNewDiscount(t *testing.T) {
	d, err := NewDiscount(KindFixedAmount, decimal.RequireFromString("5"))
	require.NoError(t, err)
	require.Equal(t, KindFixedAmount, d.Kind())

	_, err = NewDiscount("bogo", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDiscount(KindPercentage, decimal.NewFromInt(101))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizedPercent(t *testing.T) {
	unit := money("200.00")
	require.True(t, NormalizedPercent(FixedAmount{Amount: money("50")}, unit).Equal(decimal.NewFromInt(25)))
	require.True(t, NormalizedPercent(FixedAmount{Amount: money("500")}, unit).Equal(decimal.NewFromInt(100)))
	require.True(t, NormalizedPercent(pct("30"), unit).Equal(decimal.NewFromInt(30)))
	require.True(t, NormalizedPercent(FixedAmount{Amount: money("1")}, decimal.Zero).Equal(decimal.NewFromInt(100)))
	require.True(t, NormalizedPercent(FixedAmount{Amount: decimal.Zero}, decimal.Zero).IsZero())
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney(" 12.345 ")
	require.NoError(t, err)
	requireMoney(t, "12.34", m)

	_, err = ParseMoney("-1")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseMoney("abc")
	require.ErrorIs(t, err, ErrInvalidInput)
}
