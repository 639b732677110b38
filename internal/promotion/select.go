package promotion

import (
	"bytes"
	"time"

	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// Select picks the promotion that applies at now among candidates. The latest
// start date wins, then the larger discount expressed as a percentage of
// unitPrice, then the lowest id. Candidates that are not active at now or
// carry an invalid discount are ignored.
func Select(candidates []Promotion, unitPrice pricing.Money, now time.Time) (Promotion, bool) {
	var best Promotion
	var bestPct pricing.Money
	found := false
	for _, p := range candidates {
		if !p.IsActiveNow(now) {
			continue
		}
		d, err := p.Discount()
		if err != nil {
			continue
		}
		pct := pricing.NormalizedPercent(d, unitPrice)
		if !found || beats(p, pct, best, bestPct) {
			best, bestPct, found = p, pct, true
		}
	}
	return best, found
}

func beats(p Promotion, pct pricing.Money, best Promotion, bestPct pricing.Money) bool {
	if !p.StartDate.Equal(best.StartDate) {
		return p.StartDate.After(best.StartDate)
	}
	if c := pct.Cmp(bestPct); c != 0 {
		return c > 0
	}
	return bytes.Compare(p.ID[:], best.ID[:]) < 0
}

// MeetsMinOrder reports whether a cart whose gross total is gross qualifies
// for p.
func MeetsMinOrder(p Promotion, gross pricing.Money) bool {
	return gross.GreaterThanOrEqual(p.MinOrderAmount)
}
