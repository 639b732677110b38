package promotion

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/autoparts-api/internal/pricing"
)

func TestIsActiveNow(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	yesterday, tomorrow := now.Add(-24*time.Hour), now.Add(24*time.Hour)

	p := percentPromo("spring", "10", yesterday, tomorrow)
	require.True(t, p.IsActiveNow(now))

	disabled := p
	disabled.IsActive = false
	require.False(t, disabled.IsActiveNow(now))
	require.False(t, disabled.IsActiveNow(yesterday))

	deleted := p
	deleted.IsDeleted = true
	require.False(t, deleted.IsActiveNow(now))

	require.True(t, p.IsActiveNow(yesterday), "start is inclusive")
	require.True(t, p.IsActiveNow(tomorrow), "end is inclusive")
	require.False(t, p.IsActiveNow(yesterday.Add(-time.Nanosecond)))
	require.False(t, p.IsActiveNow(tomorrow.Add(time.Nanosecond)))
}

func TestValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	cases := []struct {
		name   string
		mutate func(*Promotion)
	}{
		{name: "blank name", mutate: func(p *Promotion) { p.Name = "  " }},
		{name: "percentage above 100", mutate: func(p *Promotion) { p.DiscountValue = pricing.MustParseMoney("100.01") }},
		{name: "unknown kind", mutate: func(p *Promotion) { p.DiscountType = "bogo" }},
		{name: "end before start", mutate: func(p *Promotion) { p.EndDate = p.StartDate.Add(-time.Hour) }},
		{name: "end equals start", mutate: func(p *Promotion) { p.EndDate = p.StartDate }},
		{name: "negative min order", mutate: func(p *Promotion) { p.MinOrderAmount = pricing.MustParseMoney("5").Neg() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := percentPromo("clearance", "20", start, end)
			tc.mutate(&p)
			err := p.Validate()
			require.ErrorIs(t, err, ErrInvalidPromotion)
			require.True(t, errors.Is(err, pricing.ErrInvalidInput))
		})
	}

	require.NoError(t, percentPromo("clearance", "20", start, end).Validate())
}

func TestPatchApplyOnlySuppliedFields(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := percentPromo("clearance", "20", start, start.Add(48*time.Hour))

	require.True(t, Patch{}.Empty())
	require.Equal(t, base, Patch{}.Apply(base))

	name := " oil change week "
	inactive := false
	minOrder := pricing.MustParseMoney("150")
	out := Patch{Name: &name, IsActive: &inactive, MinOrderAmount: &minOrder}.Apply(base)

	require.Equal(t, "oil change week", out.Name)
	require.False(t, out.IsActive)
	require.True(t, out.MinOrderAmount.Equal(minOrder))
	require.Equal(t, base.DiscountType, out.DiscountType)
	require.True(t, out.DiscountValue.Equal(base.DiscountValue))
	require.Equal(t, base.StartDate, out.StartDate)
	require.Equal(t, base.EndDate, out.EndDate)
}

func TestPatchApplyRoundsDiscountHalfEven(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := percentPromo("clearance", "20", start, start.Add(48*time.Hour))

	for raw, want := range map[string]string{"12.345": "12.34", "12.355": "12.36", "7.5": "7.50"} {
		value := pricing.MustParseMoney(raw)
		out := Patch{DiscountValue: &value}.Apply(base)
		require.Equal(t, want, pricing.FormatMoney(out.DiscountValue), raw)
		require.LessOrEqual(t, -out.DiscountValue.Exponent(), int32(2), raw)
	}
}

func TestBoundaries(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	upcoming := percentPromo("upcoming", "5", now.Add(time.Hour), now.Add(2*time.Hour))
	require.Len(t, upcoming.Boundaries(now), 2)

	running := percentPromo("running", "5", now.Add(-time.Hour), now.Add(time.Hour))
	require.Equal(t, []time.Time{running.EndDate}, running.Boundaries(now))

	over := percentPromo("over", "5", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.Empty(t, over.Boundaries(now))
}
