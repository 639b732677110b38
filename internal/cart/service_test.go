package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/autoparts-api/internal/cache"
	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/lock"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/quote"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubCatalog struct {
	items map[uuid.UUID]catalog.Item
	err   error
}

func (s *stubCatalog) Item(_ context.Context, id uuid.UUID) (catalog.Item, error) {
	if s.err != nil {
		return catalog.Item{}, s.err
	}
	item, ok := s.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

type stubPromotions struct {
	byItem map[uuid.UUID][]promotion.Promotion
}

func (s *stubPromotions) PromotionsForItem(_ context.Context, itemID uuid.UUID) ([]promotion.Promotion, error) {
	return s.byItem[itemID], nil
}

func (s *stubPromotions) Promotion(context.Context, uuid.UUID) (promotion.Promotion, error) {
	return promotion.Promotion{}, promotion.ErrNotFound
}

type fixture struct {
	mr      *miniredis.Miniredis
	client  *redis.Client
	catalog *stubCatalog
	promos  *stubPromotions
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	obs.MustRegisterDomainMetrics("autoparts_test", prometheus.NewRegistry())
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:      mr,
		client:  client,
		catalog: &stubCatalog{items: map[uuid.UUID]catalog.Item{}},
		promos:  &stubPromotions{byItem: map[uuid.UUID][]promotion.Promotion{}},
	}
	clock := func() time.Time { return testNow }
	f.svc = &Service{
		Store:   &Store{R: client, TTL: time.Hour},
		Locker:  lock.Locker{R: client, RetryBackoff: time.Millisecond},
		Catalog: f.catalog,
		Pricer: &quote.Quoter{
			Resolver: promotion.NewResolver(f.catalog, f.promos, zerolog.Nop()),
			Currency: "IDR",
			Logger:   zerolog.Nop(),
			Now:      clock,
		},
		LockWait: 200 * time.Millisecond,
		Logger:   zerolog.Nop(),
		Now:      clock,
	}
	return f
}

func (f *fixture) addItem(price string, stock int) catalog.Item {
	item := catalog.Item{
		ID:            uuid.New(),
		SKU:           "SKU-" + price,
		Name:          "Part " + price,
		UnitPrice:     pricing.MustParseMoney(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	f.catalog.items[item.ID] = item
	return item
}

func (f *fixture) addPromo(itemID uuid.UUID, percent, minOrder string) promotion.Promotion {
	p := promotion.Promotion{
		ID:             uuid.New(),
		Name:           "promo " + percent,
		DiscountType:   pricing.KindPercentage,
		DiscountValue:  pricing.MustParseMoney(percent),
		StartDate:      testNow.Add(-time.Hour),
		EndDate:        testNow.Add(time.Hour),
		MinOrderAmount: pricing.MustParseMoney(minOrder),
		IsActive:       true,
	}
	f.promos.byItem[itemID] = append(f.promos.byItem[itemID], p)
	return p
}

func lineFor(t *testing.T, view View, itemID uuid.UUID) quote.Line {
	t.Helper()
	for _, line := range view.Lines {
		if line.ItemID == itemID {
			return line
		}
	}
	require.FailNowf(t, "line missing", "no line for item %s", itemID)
	return quote.Line{}
}

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.Truef(t, pricing.MustParseMoney(want).Equal(got), "want %s, got %s", want, got)
}

func TestCreateAndGetEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, view.CartID)
	require.Empty(t, view.Lines)
	requireMoney(t, "0", view.Summary.FinalTotal)
	require.True(t, f.mr.Exists(cache.KeyCart(view.CartID)))
	require.Equal(t, time.Hour, f.mr.TTL(cache.KeyCart(view.CartID)))

	got, err := f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	require.Equal(t, view.CartID, got.CartID)

	_, err = f.svc.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ErrCartNotFound)
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 10)
	f.addPromo(pads.ID, "10", "0")

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	before := testutil.ToFloat64(obs.CartRepriceTotal.WithLabelValues("add"))
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 2)
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	require.Equal(t, 3, view.Lines[0].Quantity)
	requireMoney(t, "90", view.Lines[0].Price.FinalUnitPrice)
	requireMoney(t, "270", view.Summary.FinalTotal)
	require.Equal(t, before+2, testutil.ToFloat64(obs.CartRepriceTotal.WithLabelValues("add")))
	require.Equal(t, time.Hour, f.mr.TTL(cache.KeyCartLines(view.CartID)))
}

func TestAddItemValidatesItemAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 2)
	retired := f.addItem("40", 5)
	retired.IsActive = false
	f.catalog.items[retired.ID] = retired

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, view.CartID, uuid.New(), 1)
	require.ErrorIs(t, err, ErrItemUnavailable)
	_, err = f.svc.AddItem(ctx, view.CartID, retired.ID, 1)
	require.ErrorIs(t, err, ErrItemUnavailable)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 3)
	require.ErrorIs(t, err, ErrInsufficientStock)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 0)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
	_, err = f.svc.AddItem(ctx, uuid.New(), pads.ID, 1)
	require.ErrorIs(t, err, ErrCartNotFound)

	got, err := f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	require.Empty(t, got.Lines)
}

func TestAddItemCatalogOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	f.catalog.err = errors.New("connection refused")
	_, err = f.svc.AddItem(ctx, view.CartID, uuid.New(), 1)
	require.ErrorIs(t, err, promotion.ErrCatalogUnavailable)
	require.ErrorIs(t, err, promotion.ErrUnavailable)
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	filter := f.addItem("50", 5)

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, filter.ID, 1)
	require.NoError(t, err)

	view, err = f.svc.UpdateQuantity(ctx, view.CartID, pads.ID, 4)
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.Equal(t, pads.ID, view.Lines[0].ItemID)
	require.Equal(t, 4, lineFor(t, view, pads.ID).Quantity)
	require.Equal(t, 1, lineFor(t, view, filter.ID).Quantity)
	requireMoney(t, "450", view.Summary.FinalTotal)

	_, err = f.svc.UpdateQuantity(ctx, view.CartID, pads.ID, 6)
	require.ErrorIs(t, err, ErrInsufficientStock)
	_, err = f.svc.UpdateQuantity(ctx, view.CartID, uuid.New(), 1)
	require.ErrorIs(t, err, ErrLineNotFound)

	view, err = f.svc.UpdateQuantity(ctx, view.CartID, pads.ID, 0)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, filter.ID, view.Lines[0].ItemID)
}

func TestRemoveItemKeepsAppliedPromotionBelowMinimumOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	filter := f.addItem("50", 5)
	promo := f.addPromo(pads.ID, "20", "150")

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, view.CartID, filter.ID, 1)
	require.NoError(t, err)
	requireMoney(t, "80", lineFor(t, view, pads.ID).Price.FinalUnitPrice)
	requireMoney(t, "130", view.Summary.FinalTotal)

	view, err = f.svc.RemoveItem(ctx, view.CartID, filter.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	line := lineFor(t, view, pads.ID)
	require.False(t, line.PromotionSkipped)
	require.True(t, line.PromotionRetained)
	require.NotNil(t, line.Promotion)
	require.Equal(t, promo.ID, line.Promotion.ID)
	requireMoney(t, "80", line.Price.FinalUnitPrice)
	requireMoney(t, "80", view.Summary.FinalTotal)

	view, err = f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	requireMoney(t, "80", view.Summary.FinalTotal)

	view, err = f.svc.UpdateQuantity(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	requireMoney(t, "80", view.Summary.FinalTotal)

	_, err = f.svc.RemoveItem(ctx, view.CartID, filter.ID)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestMinimumOrderGatesFirstApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	filter := f.addItem("50", 5)
	f.addPromo(pads.ID, "20", "150")

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	line := lineFor(t, view, pads.ID)
	require.True(t, line.PromotionSkipped)
	require.Nil(t, line.Promotion)
	requireMoney(t, "100", view.Summary.FinalTotal)

	view, err = f.svc.AddItem(ctx, view.CartID, filter.ID, 1)
	require.NoError(t, err)
	requireMoney(t, "130", view.Summary.FinalTotal)

	// a removed line forgets its promotion, so adding it back is gated again
	_, err = f.svc.RemoveItem(ctx, view.CartID, filter.ID)
	require.NoError(t, err)
	_, err = f.svc.RemoveItem(ctx, view.CartID, pads.ID)
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	require.True(t, lineFor(t, view, pads.ID).PromotionSkipped)
	requireMoney(t, "100", view.Summary.FinalTotal)
}

func TestPromotionAppliedOnReadIsRetained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	filter := f.addItem("50", 5)

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, filter.ID, 1)
	require.NoError(t, err)

	promo := f.addPromo(pads.ID, "20", "150")
	view, err = f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	requireMoney(t, "130", view.Summary.FinalTotal)

	entries, err := f.svc.Store.Entries(ctx, view.CartID)
	require.NoError(t, err)
	require.Equal(t, promo.ID, entries[0].AppliedPromotionID)

	view, err = f.svc.RemoveItem(ctx, view.CartID, filter.ID)
	require.NoError(t, err)
	requireMoney(t, "80", view.Summary.FinalTotal)
}

func TestRetainedPromotionEndsWithItsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	filter := f.addItem("50", 5)
	f.addPromo(pads.ID, "20", "150")

	view, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, view.CartID, filter.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.RemoveItem(ctx, view.CartID, filter.ID)
	require.NoError(t, err)

	f.promos.byItem[pads.ID][0].IsActive = false
	view, err = f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	line := lineFor(t, view, pads.ID)
	require.Nil(t, line.Promotion)
	require.False(t, line.PromotionRetained)
	requireMoney(t, "100", view.Summary.FinalTotal)

	// re-enabled, it has to clear the minimum again
	f.promos.byItem[pads.ID][0].IsActive = true
	view, err = f.svc.Get(ctx, view.CartID)
	require.NoError(t, err)
	require.True(t, lineFor(t, view, pads.ID).PromotionSkipped)
	requireMoney(t, "100", view.Summary.FinalTotal)
}

func TestLinesKeepAddOrderUnderFrozenClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	var added []uuid.UUID
	for _, price := range []string{"10", "20", "30", "40", "50", "60"} {
		item := f.addItem(price, 10)
		_, err = f.svc.AddItem(ctx, view.CartID, item.ID, 1)
		require.NoError(t, err)
		added = append(added, item.ID)
	}
	view, err = f.svc.AddItem(ctx, view.CartID, added[0], 2)
	require.NoError(t, err)

	got := make([]uuid.UUID, 0, len(view.Lines))
	for _, line := range view.Lines {
		got = append(got, line.ItemID)
	}
	require.Equal(t, added, got)
	require.Equal(t, 3, view.Lines[0].Quantity)
	require.Equal(t, time.Hour, f.mr.TTL(cache.KeyCartSeq(view.CartID)))
}

func TestMutationReportsBusyWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.addItem("100", 5)
	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.mr.Set(cache.KeyCartLock(view.CartID), "someone-else"))
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.ErrorIs(t, err, ErrCartBusy)

	f.mr.Del(cache.KeyCartLock(view.CartID))
	_, err = f.svc.AddItem(ctx, view.CartID, pads.ID, 1)
	require.NoError(t, err)
}

func TestCartExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx)
	require.NoError(t, err)

	f.mr.FastForward(2 * time.Hour)
	_, err = f.svc.Get(ctx, view.CartID)
	require.ErrorIs(t, err, ErrCartNotFound)
}
