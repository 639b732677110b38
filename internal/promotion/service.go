package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// AdminStore persists promotions and their item links. Promotion returns
// soft-deleted rows too; the service decides their visibility.
type AdminStore interface {
	Store
	Insert(ctx context.Context, p Promotion) (Promotion, error)
	Update(ctx context.Context, p Promotion) (Promotion, error)
	LinkItems(ctx context.Context, id uuid.UUID, itemIDs []uuid.UUID) error
	UnlinkItem(ctx context.Context, id, itemID uuid.UUID) error
	LinkedItems(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// Invalidator drops cached promotion lists for items.
type Invalidator interface {
	Invalidate(ctx context.Context, itemIDs ...uuid.UUID) error
}

// Scheduler arranges work at a promotion's future boundaries.
type Scheduler interface {
	Schedule(ctx context.Context, p Promotion, now time.Time) error
}

// View is a promotion as returned to administrators.
type View struct {
	Promotion
	IsActiveNow bool        `json:"isActiveNow"`
	ItemIDs     []uuid.UUID `json:"itemIds"`
}

// Service manages the promotion lifecycle.
type Service struct {
	Store       AdminStore
	Invalidator Invalidator
	Scheduler   Scheduler
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Create validates and stores a new promotion. Its window must not already
// have ended.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	now := s.now()
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	p := Promotion{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(in.Name),
		DiscountType:   in.DiscountType,
		DiscountValue:  pricing.RoundMoney(in.DiscountValue),
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
		MinOrderAmount: pricing.RoundMoney(in.MinOrderAmount),
		IsActive:       active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Validate(); err != nil {
		return View{}, err
	}
	if !p.EndDate.After(now) {
		return View{}, fmt.Errorf("%w: end date must be in the future", ErrInvalidPromotion)
	}
	stored, err := s.Store.Insert(ctx, p)
	if err != nil {
		return View{}, err
	}
	s.schedule(ctx, stored, now)
	return View{Promotion: stored, IsActiveNow: stored.IsActiveNow(now), ItemIDs: []uuid.UUID{}}, nil
}

// Update applies patch to a live promotion and revalidates the result.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (View, error) {
	now := s.now()
	current, err := s.live(ctx, id)
	if err != nil {
		return View{}, err
	}
	if patch.Empty() {
		return s.view(ctx, current, now)
	}
	merged := patch.Apply(current)
	if err := merged.Validate(); err != nil {
		return View{}, err
	}
	merged.UpdatedAt = now
	stored, err := s.Store.Update(ctx, merged)
	if err != nil {
		return View{}, err
	}
	s.invalidateLinked(ctx, id)
	s.schedule(ctx, stored, now)
	return s.view(ctx, stored, now)
}

// Delete soft-deletes a promotion, keeping the row and its links.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	current.IsDeleted = true
	current.UpdatedAt = s.now()
	if _, err := s.Store.Update(ctx, current); err != nil {
		return err
	}
	s.invalidateLinked(ctx, id)
	return nil
}

// Get returns a live promotion with its activity at the current time.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	p, err := s.live(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, p, s.now())
}

// LinkItems associates catalog items with a live promotion. Unknown items
// yield ErrNotFound.
func (s *Service) LinkItems(ctx context.Context, id uuid.UUID, itemIDs []uuid.UUID) (View, error) {
	if len(itemIDs) == 0 {
		return View{}, fmt.Errorf("%w: at least one item is required", ErrInvalidPromotion)
	}
	p, err := s.live(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := s.Store.LinkItems(ctx, id, dedupe(itemIDs)); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return View{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return View{}, err
	}
	s.invalidate(ctx, itemIDs...)
	now := s.now()
	s.schedule(ctx, p, now)
	return s.view(ctx, p, now)
}

// UnlinkItem removes one item association.
func (s *Service) UnlinkItem(ctx context.Context, id, itemID uuid.UUID) error {
	if _, err := s.live(ctx, id); err != nil {
		return err
	}
	if err := s.Store.UnlinkItem(ctx, id, itemID); err != nil {
		return err
	}
	s.invalidate(ctx, itemID)
	return nil
}

func (s *Service) live(ctx context.Context, id uuid.UUID) (Promotion, error) {
	p, err := s.Store.Promotion(ctx, id)
	if err != nil {
		return Promotion{}, err
	}
	if p.IsDeleted {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) view(ctx context.Context, p Promotion, now time.Time) (View, error) {
	items, err := s.Store.LinkedItems(ctx, p.ID)
	if err != nil {
		return View{}, err
	}
	if items == nil {
		items = []uuid.UUID{}
	}
	return View{Promotion: p, IsActiveNow: p.IsActiveNow(now), ItemIDs: items}, nil
}

func (s *Service) invalidateLinked(ctx context.Context, id uuid.UUID) {
	items, err := s.Store.LinkedItems(ctx, id)
	if err != nil {
		s.Logger.Error().Err(err).Str("promotion_id", id.String()).Msg("load linked items for invalidation")
		return
	}
	s.invalidate(ctx, items...)
}

// invalidate failures are logged; cached entries still expire within MaxCacheTTL.
func (s *Service) invalidate(ctx context.Context, itemIDs ...uuid.UUID) {
	if s.Invalidator == nil || len(itemIDs) == 0 {
		return
	}
	if err := s.Invalidator.Invalidate(ctx, itemIDs...); err != nil {
		s.Logger.Error().Err(err).Int("items", len(itemIDs)).Msg("invalidate promotion cache")
	}
}

func (s *Service) schedule(ctx context.Context, p Promotion, now time.Time) {
	if s.Scheduler == nil {
		return
	}
	if err := s.Scheduler.Schedule(ctx, p, now); err != nil {
		s.Logger.Warn().Err(err).Str("promotion_id", p.ID.String()).Msg("schedule promotion boundaries")
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
