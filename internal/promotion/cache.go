package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/cache"
	"github.com/noah-isme/autoparts-api/internal/obs"
)

// MaxCacheTTL bounds how long an item's promotion list may be cached.
const MaxCacheTTL = 60 * time.Second

// CachedStore serves PromotionsForItem from Redis. Entries hold raw records;
// activity is always decided by the caller at read time. Single promotion
// lookups bypass the cache.
type CachedStore struct {
	Next   Store
	Cache  *cache.JSON
	TTL    time.Duration
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewCachedStore wraps next with a Redis cache.
func NewCachedStore(next Store, c *cache.JSON, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{Next: next, Cache: c, TTL: ttl, Now: time.Now, Logger: logger}
}

// PromotionsForItem implements Store.
func (s *CachedStore) PromotionsForItem(ctx context.Context, itemID uuid.UUID) ([]Promotion, error) {
	key := cache.KeyItemPromotions(itemID)
	if s.Cache.Enabled() {
		var cached []Promotion
		hit, err := s.Cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			obs.IncCounter(obs.PromotionCacheTotal, "error")
			s.Logger.Warn().Err(err).Str("item_id", itemID.String()).Msg("promotion cache read failed")
		case hit:
			obs.IncCounter(obs.PromotionCacheTotal, "hit")
			return cached, nil
		default:
			obs.IncCounter(obs.PromotionCacheTotal, "miss")
		}
	}

	promos, err := s.Next.PromotionsForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if promos == nil {
		promos = []Promotion{}
	}
	if ttl := s.ttlFor(promos, s.now()); ttl > 0 {
		if err := s.Cache.SetJSON(ctx, key, promos, ttl); err != nil {
			s.Logger.Warn().Err(err).Str("item_id", itemID.String()).Msg("promotion cache write failed")
		}
	}
	return promos, nil
}

// Promotion implements Store.
func (s *CachedStore) Promotion(ctx context.Context, id uuid.UUID) (Promotion, error) {
	return s.Next.Promotion(ctx, id)
}

// Invalidate drops the cached promotion lists of itemIDs.
func (s *CachedStore) Invalidate(ctx context.Context, itemIDs ...uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		keys = append(keys, cache.KeyItemPromotions(id))
	}
	return s.Cache.Delete(ctx, keys...)
}

func (s *CachedStore) ttlFor(promos []Promotion, now time.Time) time.Duration {
	return BoundedTTL(s.TTL, promos, now)
}

func (s *CachedStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// BoundedTTL clamps ttl to MaxCacheTTL and to the earliest start or end of
// promos still ahead of now, so a cached entry never spans a boundary.
func BoundedTTL(ttl time.Duration, promos []Promotion, now time.Time) time.Duration {
	if ttl <= 0 || ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	for _, p := range promos {
		for _, at := range p.Boundaries(now) {
			if until := at.Sub(now); until < ttl {
				ttl = until
			}
		}
	}
	return ttl
}
