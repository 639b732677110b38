package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/resilience"
)

// GuardedStore runs store calls behind a circuit breaker. Refused or failed
// calls surface as ErrUnavailable; ErrNotFound passes through and does not
// count against the dependency.
type GuardedStore struct {
	Next    Store
	Breaker *resilience.Breaker
}

// NewGuardedStore wraps next with breaker.
func NewGuardedStore(next Store, breaker *resilience.Breaker) *GuardedStore {
	return &GuardedStore{Next: next, Breaker: breaker}
}

// PromotionsForItem implements Store.
func (g *GuardedStore) PromotionsForItem(ctx context.Context, itemID uuid.UUID) ([]Promotion, error) {
	var out []Promotion
	err := g.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.PromotionsForItem(ctx, itemID)
		return err
	})
	return out, err
}

// Promotion implements Store.
func (g *GuardedStore) Promotion(ctx context.Context, id uuid.UUID) (Promotion, error) {
	var out Promotion
	err := g.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.Promotion(ctx, id)
		return err
	})
	return out, err
}

func (g *GuardedStore) run(ctx context.Context, fn func(context.Context) error) error {
	if g.Breaker == nil {
		return unavailable(fn(ctx))
	}
	err := g.Breaker.Execute(ctx, fn, isStoreFailure)
	return unavailable(err)
}

func isStoreFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
