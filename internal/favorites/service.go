package favorites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/quote"
)

var (
	// ErrItemUnavailable indicates the item is missing from the catalog or disabled.
	ErrItemUnavailable = errors.New("favorites: item unavailable")
	// ErrNotFavorited indicates the item is not in the user's favorites.
	ErrNotFavorited = errors.New("favorites: not favorited")
)

// Pricer prices items as standalone single units.
type Pricer interface {
	PriceItems(ctx context.Context, itemIDs []uuid.UUID) ([]quote.Line, error)
}

// Service manages a user's favorite parts.
type Service struct {
	Store   *Store
	Catalog catalog.Reader
	Pricer  Pricer
	Now     func() time.Time
}

// Add favorites itemID. Only active catalog items can be added.
func (s *Service) Add(ctx context.Context, userID string, itemID uuid.UUID) error {
	item, err := s.Catalog.Item(ctx, itemID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
	case err != nil:
		return fmt.Errorf("%w: %v", promotion.ErrCatalogUnavailable, err)
	case !item.IsActive:
		return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
	}
	return s.Store.Add(ctx, userID, itemID, s.now())
}

// Remove unfavorites itemID.
func (s *Service) Remove(ctx context.Context, userID string, itemID uuid.UUID) error {
	removed, err := s.Store.Remove(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFavorited
	}
	return nil
}

// List prices every favorite with its current promotion. Items that have
// since been disabled stay in the list as unavailable lines.
func (s *Service) List(ctx context.Context, userID string) ([]quote.Line, error) {
	ids, err := s.Store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Pricer.PriceItems(ctx, ids)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
