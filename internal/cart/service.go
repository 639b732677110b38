package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/autoparts-api/internal/cache"
	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/quote"
)

var (
	// ErrCartNotFound indicates the cart does not exist or has expired.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrLineNotFound indicates the cart has no line for the item.
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrItemUnavailable indicates the item is missing from the catalog or disabled.
	ErrItemUnavailable = errors.New("cart: item unavailable")
	// ErrInsufficientStock indicates the requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("cart: insufficient stock")
	// ErrCartBusy indicates the cart lock could not be taken in time.
	ErrCartBusy = errors.New("cart: busy")
)

// MaxLineQuantity caps the quantity of a single line.
const MaxLineQuantity = 999

const (
	defaultLockTTL  = 5 * time.Second
	defaultLockWait = 3 * time.Second
)

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Pricer prices cart lines as one order.
type Pricer interface {
	Quote(ctx context.Context, reqs []quote.LineRequest) (quote.Quote, error)
}

// View is a cart with freshly computed prices.
type View struct {
	CartID uuid.UUID `json:"cartId"`
	quote.Quote
}

// Service implements cart operations. Every mutation runs under the cart lock
// and reprices the whole cart before the lock is released.
type Service struct {
	Store    *Store
	Locker   Locker
	Catalog  catalog.Reader
	Pricer   Pricer
	LockTTL  time.Duration
	LockWait time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (View, error) {
	meta := Meta{ID: uuid.New(), CreatedAt: s.now()}
	if err := s.Store.Create(ctx, meta); err != nil {
		return View{}, err
	}
	return s.reprice(ctx, meta.ID, nil, "create")
}

// Get reprices the cart from one snapshot of its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	if _, err := s.Store.Meta(ctx, id); err != nil {
		return View{}, err
	}
	entries, err := s.Store.Entries(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.reprice(ctx, id, entries, "read")
}

// AddItem adds qty units of itemID, incrementing an existing line.
func (s *Service) AddItem(ctx context.Context, id, itemID uuid.UUID, qty int) (View, error) {
	if qty < 1 || qty > MaxLineQuantity {
		return View{}, fmt.Errorf("%w: quantity must be between 1 and %d", pricing.ErrInvalidInput, MaxLineQuantity)
	}
	return s.mutate(ctx, id, "add", func(ctx context.Context, entries []Entry) error {
		entry := Entry{ItemID: itemID, Quantity: qty, AddedAt: s.now()}
		if existing, ok := find(entries, itemID); ok {
			entry = existing
			entry.Quantity += qty
		}
		if entry.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: quantity must not exceed %d", pricing.ErrInvalidInput, MaxLineQuantity)
		}
		if err := s.checkItem(ctx, itemID, entry.Quantity); err != nil {
			return err
		}
		return s.Store.Put(ctx, id, entry)
	})
}

// UpdateQuantity sets the quantity of an existing line. Zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, id, itemID uuid.UUID, qty int) (View, error) {
	if qty < 0 || qty > MaxLineQuantity {
		return View{}, fmt.Errorf("%w: quantity must be between 0 and %d", pricing.ErrInvalidInput, MaxLineQuantity)
	}
	if qty == 0 {
		return s.RemoveItem(ctx, id, itemID)
	}
	return s.mutate(ctx, id, "update", func(ctx context.Context, entries []Entry) error {
		existing, ok := find(entries, itemID)
		if !ok {
			return ErrLineNotFound
		}
		if err := s.checkItem(ctx, itemID, qty); err != nil {
			return err
		}
		existing.Quantity = qty
		return s.Store.Put(ctx, id, existing)
	})
}

// RemoveItem deletes the line for itemID.
func (s *Service) RemoveItem(ctx context.Context, id, itemID uuid.UUID) (View, error) {
	return s.mutate(ctx, id, "remove", func(ctx context.Context, _ []Entry) error {
		removed, err := s.Store.Remove(ctx, id, itemID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrLineNotFound
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, op string, fn func(context.Context, []Entry) error) (View, error) {
	var view View
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait())
	defer cancel()
	err := s.Locker.WithLock(lockCtx, cache.KeyCartLock(id), s.lockTTL(), func(ctx context.Context) error {
		if _, err := s.Store.Meta(ctx, id); err != nil {
			return err
		}
		entries, err := s.Store.Entries(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, entries); err != nil {
			return err
		}
		if entries, err = s.Store.Entries(ctx, id); err != nil {
			return err
		}
		view, err = s.reprice(ctx, id, entries, op)
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return View{}, fmt.Errorf("%w: %s", ErrCartBusy, id)
		}
		return View{}, err
	}
	return view, nil
}

func (s *Service) reprice(ctx context.Context, id uuid.UUID, entries []Entry, op string) (View, error) {
	reqs := make([]quote.LineRequest, 0, len(entries))
	for _, e := range entries {
		reqs = append(reqs, quote.LineRequest{ItemID: e.ItemID, Quantity: e.Quantity, AppliedPromotionID: e.AppliedPromotionID})
	}
	q, err := s.Pricer.Quote(ctx, reqs)
	if err != nil {
		return View{}, err
	}
	if err := s.recordPromotions(ctx, id, entries, q.Lines); err != nil {
		return View{}, err
	}
	obs.IncCounter(obs.CartRepriceTotal, op)
	obs.AnnotateSpan(ctx,
		obs.AttrCartID.String(id.String()),
		obs.AttrOperation.String(op),
		attribute.Int("autoparts.cart.lines", len(q.Lines)),
	)
	s.Logger.Debug().
		Str("cart_id", id.String()).
		Str("operation", op).
		Int("lines", len(q.Lines)).
		Str("final_total", pricing.FormatMoney(q.Summary.FinalTotal)).
		Msg("cart repriced")
	return View{CartID: id, Quote: q}, nil
}

// recordPromotions remembers which promotion each line was priced with, so a
// discount once applied survives the cart later dropping below its minimum
// order. Degraded and unavailable lines keep what they had.
func (s *Service) recordPromotions(ctx context.Context, id uuid.UUID, entries []Entry, lines []quote.Line) error {
	for i, e := range entries {
		if i >= len(lines) {
			break
		}
		line := lines[i]
		if !line.Available || line.PromotionDegraded {
			continue
		}
		applied := uuid.Nil
		if line.Promotion != nil {
			applied = line.Promotion.ID
		}
		if applied == e.AppliedPromotionID {
			continue
		}
		if err := s.Store.RecordPromotion(ctx, id, e, applied); err != nil {
			return fmt.Errorf("record promotion for cart %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) checkItem(ctx context.Context, itemID uuid.UUID, qty int) error {
	item, err := s.Catalog.Item(ctx, itemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
		}
		return fmt.Errorf("%w: %v", promotion.ErrCatalogUnavailable, err)
	}
	if !item.IsActive {
		return fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
	}
	if !item.InStock(qty) {
		return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, qty, item.StockQuantity)
	}
	return nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return defaultLockTTL
	}
	return s.LockTTL
}

func (s *Service) lockWait() time.Duration {
	if s.LockWait <= 0 {
		return defaultLockWait
	}
	return s.LockWait
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func find(entries []Entry, itemID uuid.UUID) (Entry, bool) {
	for _, e := range entries {
		if e.ItemID == itemID {
			return e, true
		}
	}
	return Entry{}, false
}
