package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// Store reads promotion records and their item associations.
type Store interface {
	PromotionsForItem(ctx context.Context, itemID uuid.UUID) ([]Promotion, error)
	Promotion(ctx context.Context, id uuid.UUID) (Promotion, error)
}

// Resolver decides which promotion, if any, prices an item.
type Resolver struct {
	Catalog catalog.Reader
	Store   Store
	Logger  zerolog.Logger
}

// NewResolver constructs a resolver over the catalog and promotion store.
func NewResolver(items catalog.Reader, store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{Catalog: items, Store: store, Logger: logger}
}

// Resolve looks up the item and selects its active promotion at now.
//
// A missing item yields ErrNotFound. When the promotion store fails the
// returned Resolution still carries the item and the error wraps
// ErrUnavailable, so callers can price at base. A catalog outage yields
// ErrCatalogUnavailable with an empty Resolution.
func (r *Resolver) Resolve(ctx context.Context, itemID uuid.UUID, now time.Time) (Resolution, error) {
	item, err := r.Catalog.Item(ctx, itemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Resolution{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return Resolution{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	res := Resolution{Item: item}
	if r.Store == nil {
		return res, nil
	}

	candidates, err := r.Store.PromotionsForItem(ctx, itemID)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return res, err
	}
	selected, ok := Select(candidates, item.UnitPrice, now)
	if !ok {
		return res, nil
	}
	discount, err := selected.Discount()
	if err != nil {
		return res, err
	}
	res.Promotion = &selected
	res.Discount = discount
	return res, nil
}

// ResolveActivePromotion returns the discount of the item's active promotion
// at now, or nil when none applies.
func (r *Resolver) ResolveActivePromotion(ctx context.Context, itemID uuid.UUID, now time.Time) (pricing.Discount, error) {
	res, err := r.Resolve(ctx, itemID, now)
	if err != nil {
		return nil, err
	}
	return res.Discount, nil
}
