package promotion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

var errBoom = errors.New("connection refused")

type stubCatalog struct {
	items map[uuid.UUID]catalog.Item
	err   error
}

func (s stubCatalog) Item(_ context.Context, id uuid.UUID) (catalog.Item, error) {
	if s.err != nil {
		return catalog.Item{}, s.err
	}
	item, ok := s.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

// memStore is an in-memory AdminStore.
type memStore struct {
	mu     sync.Mutex
	promos map[uuid.UUID]Promotion
	links  map[uuid.UUID][]uuid.UUID
	known  map[uuid.UUID]bool
	err    error
	calls  int
}

func newMemStore() *memStore {
	return &memStore{
		promos: map[uuid.UUID]Promotion{},
		links:  map[uuid.UUID][]uuid.UUID{},
		known:  map[uuid.UUID]bool{},
	}
}

func (m *memStore) PromotionsForItem(_ context.Context, itemID uuid.UUID) ([]Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []Promotion
	for pid, items := range m.links {
		for _, id := range items {
			if id == itemID && !m.promos[pid].IsDeleted {
				out = append(out, m.promos[pid])
			}
		}
	}
	return out, nil
}

func (m *memStore) Promotion(_ context.Context, id uuid.UUID) (Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Promotion{}, m.err
	}
	p, ok := m.promos[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) Insert(_ context.Context, p Promotion) (Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[p.ID] = p
	return p, nil
}

func (m *memStore) Update(_ context.Context, p Promotion) (Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[p.ID]; !ok {
		return Promotion{}, ErrNotFound
	}
	m.promos[p.ID] = p
	return p, nil
}

func (m *memStore) LinkItems(_ context.Context, id uuid.UUID, itemIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range itemIDs {
		if !m.known[item] {
			return catalog.ErrNotFound
		}
	}
	m.links[id] = append(m.links[id], itemIDs...)
	return nil
}

func (m *memStore) UnlinkItem(_ context.Context, id, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.links[id]
	for i, existing := range items {
		if existing == itemID {
			m.links[id] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) LinkedItems(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.links[id]...), nil
}

func (m *memStore) link(p Promotion, items ...uuid.UUID) {
	m.promos[p.ID] = p
	m.links[p.ID] = append(m.links[p.ID], items...)
	for _, id := range items {
		m.known[id] = true
	}
}

type recordingInvalidator struct {
	mu    sync.Mutex
	items []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, itemIDs ...uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, itemIDs...)
	return nil
}

type recordingScheduler struct {
	scheduled []Promotion
}

func (r *recordingScheduler) Schedule(_ context.Context, p Promotion, _ time.Time) error {
	r.scheduled = append(r.scheduled, p)
	return nil
}

func percentPromo(name string, pct string, start, end time.Time) Promotion {
	return Promotion{
		ID:             uuid.New(),
		Name:           name,
		DiscountType:   pricing.KindPercentage,
		DiscountValue:  pricing.MustParseMoney(pct),
		StartDate:      start,
		EndDate:        end,
		MinOrderAmount: pricing.MustParseMoney("0"),
		IsActive:       true,
	}
}

func fixedPromo(name string, amount string, start, end time.Time) Promotion {
	p := percentPromo(name, "0", start, end)
	p.DiscountType = pricing.KindFixedAmount
	p.DiscountValue = pricing.MustParseMoney(amount)
	return p
}

func part(price string) catalog.Item {
	return catalog.Item{
		ID:            uuid.New(),
		SKU:           "BRK-PAD-01",
		Name:          "Brake pad set",
		UnitPrice:     pricing.MustParseMoney(price),
		StockQuantity: 10,
		IsActive:      true,
	}
}
