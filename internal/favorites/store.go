package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/autoparts-api/internal/cache"
)

// Store keeps each user's favorites in a Redis sorted set scored by the time
// the item was added.
type Store struct {
	R *redis.Client
}

// Add records itemID for userID. Re-adding keeps the original timestamp.
func (s *Store) Add(ctx context.Context, userID string, itemID uuid.UUID, at time.Time) error {
	return s.R.ZAddNX(ctx, cache.KeyFavorites(userID), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: itemID.String(),
	}).Err()
}

// Remove deletes itemID, reporting whether it was present.
func (s *Store) Remove(ctx context.Context, userID string, itemID uuid.UUID) (bool, error) {
	n, err := s.R.ZRem(ctx, cache.KeyFavorites(userID), itemID.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns the favorite item ids, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]uuid.UUID, error) {
	members, err := s.R.ZRevRange(ctx, cache.KeyFavorites(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("favorites %s: bad member %q: %w", userID, m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
