package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
)

// Resolver resolves an item and its active promotion.
type Resolver interface {
	Resolve(ctx context.Context, itemID uuid.UUID, now time.Time) (promotion.Resolution, error)
}

// LineRequest asks for quantity units of an item.
type LineRequest struct {
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=1,lte=999"`
	// AppliedPromotionID names a promotion already applied to this line. It
	// stays applied while it is the item's active promotion, even when the
	// order falls below its minimum.
	AppliedPromotionID uuid.UUID `json:"-"`
}

// AppliedPromotion identifies the promotion that priced a line.
type AppliedPromotion struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Line is one priced cart or favorites entry. Price is nil for unavailable lines.
type Line struct {
	ItemID            uuid.UUID          `json:"itemId"`
	SKU               string             `json:"sku,omitempty"`
	Name              string             `json:"name,omitempty"`
	Quantity          int                `json:"quantity"`
	Available         bool               `json:"available"`
	InStock           bool               `json:"inStock"`
	PromotionDegraded bool               `json:"promotionDegraded"`
	PromotionSkipped  bool               `json:"promotionSkipped"`
	PromotionRetained bool               `json:"promotionRetained,omitempty"`
	Promotion         *AppliedPromotion  `json:"promotion,omitempty"`
	Price             *pricing.Breakdown `json:"price,omitempty"`
}

// Quote is a fully priced set of lines.
type Quote struct {
	Lines    []Line              `json:"lines"`
	Summary  pricing.CartSummary `json:"summary"`
	Totals   pricing.OrderTotals `json:"totals"`
	Currency string              `json:"currency"`
	PricedAt time.Time           `json:"pricedAt"`
}

// Quoter prices lines against the catalog and active promotions.
type Quoter struct {
	Resolver   Resolver
	TaxRateBps int
	Currency   string
	Logger     zerolog.Logger
	Now        func() time.Time
}

// resolved is a line after lookup and before pricing.
type resolved struct {
	line    Line
	res     promotion.Resolution
	applied uuid.UUID
}

// Quote prices reqs as one order. Missing or disabled items become
// unavailable lines excluded from the summary. A promotion lookup failure
// prices the line at base; a catalog outage aborts the quote.
func (q *Quoter) Quote(ctx context.Context, reqs []LineRequest) (Quote, error) {
	now := q.now()
	lines := make([]resolved, 0, len(reqs))
	for _, req := range reqs {
		if req.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: quantity %d for item %s", pricing.ErrInvalidInput, req.Quantity, req.ItemID)
		}
		r, err := q.resolve(ctx, req.ItemID, req.Quantity, now)
		if err != nil {
			return Quote{}, err
		}
		r.applied = req.AppliedPromotionID
		lines = append(lines, r)
	}

	// min orders are checked against the gross total of available lines
	gross := decimal.Zero
	for _, r := range lines {
		if r.line.Available {
			gross = gross.Add(r.res.Item.UnitPrice.Mul(decimal.NewFromInt(int64(r.line.Quantity))))
		}
	}

	out := Quote{Lines: make([]Line, 0, len(lines)), Currency: q.Currency, PricedAt: now}
	breakdowns := make([]pricing.Breakdown, 0, len(lines))
	for _, r := range lines {
		line, err := q.price(r, gross)
		if err != nil {
			return Quote{}, err
		}
		if line.Price != nil {
			breakdowns = append(breakdowns, *line.Price)
		}
		out.Lines = append(out.Lines, line)
	}
	out.Summary = pricing.Aggregate(breakdowns)
	totals, err := pricing.ComputeOrderTotals(out.Summary, q.TaxRateBps)
	if err != nil {
		return Quote{}, err
	}
	out.Totals = totals
	return out, nil
}

// PriceItems prices each item as a standalone single unit, so a promotion's
// minimum order is checked against that item's own price.
func (q *Quoter) PriceItems(ctx context.Context, itemIDs []uuid.UUID) ([]Line, error) {
	now := q.now()
	out := make([]Line, 0, len(itemIDs))
	for _, id := range itemIDs {
		r, err := q.resolve(ctx, id, 1, now)
		if err != nil {
			return nil, err
		}
		line, err := q.price(r, r.res.Item.UnitPrice)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (q *Quoter) resolve(ctx context.Context, itemID uuid.UUID, qty int, now time.Time) (resolved, error) {
	line := Line{ItemID: itemID, Quantity: qty}
	res, err := q.Resolver.Resolve(ctx, itemID, now)
	switch {
	case err == nil:
	case errors.Is(err, promotion.ErrNotFound):
		obs.IncCounter(obs.QuoteLinesTotal, "unavailable")
		return resolved{line: line}, nil
	case errors.Is(err, promotion.ErrCatalogUnavailable):
		return resolved{}, err
	case errors.Is(err, promotion.ErrUnavailable):
		q.Logger.Warn().Err(err).Str("item_id", itemID.String()).Msg("promotion lookup unavailable; pricing at base")
		obs.IncCounter(obs.PromotionFallbackTotal, "unavailable")
		line.PromotionDegraded = true
		res.Discount = nil
		res.Promotion = nil
	default:
		return resolved{}, err
	}

	line.SKU = res.Item.SKU
	line.Name = res.Item.Name
	if !res.Item.IsActive {
		obs.IncCounter(obs.QuoteLinesTotal, "unavailable")
		return resolved{line: line}, nil
	}
	line.Available = true
	line.InStock = res.Item.InStock(qty)
	return resolved{line: line, res: res}, nil
}

func (q *Quoter) price(r resolved, gross pricing.Money) (Line, error) {
	line := r.line
	if !line.Available {
		return line, nil
	}
	discount := r.res.Discount
	if p := r.res.Promotion; p != nil {
		switch {
		case promotion.MeetsMinOrder(*p, gross):
			line.Promotion = &AppliedPromotion{ID: p.ID, Name: p.Name}
		case p.ID == r.applied:
			line.Promotion = &AppliedPromotion{ID: p.ID, Name: p.Name}
			line.PromotionRetained = true
		default:
			discount = nil
			line.PromotionSkipped = true
		}
	}
	b, err := pricing.ComputeBreakdown(r.res.Item.UnitPrice, line.Quantity, discount)
	if err != nil {
		return Line{}, err
	}
	line.Price = &b

	switch {
	case line.PromotionDegraded:
		obs.IncCounter(obs.QuoteLinesTotal, "degraded")
	case line.PromotionSkipped:
		obs.IncCounter(obs.QuoteLinesTotal, "min_order_skipped")
	case line.PromotionRetained:
		obs.IncCounter(obs.QuoteLinesTotal, "retained")
	default:
		obs.IncCounter(obs.QuoteLinesTotal, "priced")
	}
	return line, nil
}

func (q *Quoter) now() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}
