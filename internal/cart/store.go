package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/autoparts-api/internal/cache"
)

const defaultTTL = 30 * 24 * time.Hour

// Meta is the cart header stored under cache.KeyCart.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is a stored cart line before pricing.
type Entry struct {
	ItemID   uuid.UUID
	Quantity int
	AddedAt  time.Time
	// Seq orders lines within the cart. Zero means not yet stored.
	Seq int64
	// AppliedPromotionID is the promotion last applied to the line, or uuid.Nil.
	AppliedPromotionID uuid.UUID
}

// Store keeps carts in Redis: a meta key and a hash of item id to line. Both
// keys share the cart TTL and are refreshed on every write.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s *Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

// Create writes the cart header. It fails if the id is already taken.
func (s *Store) Create(ctx context.Context, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	ok, err := s.R.SetNX(ctx, cache.KeyCart(meta.ID), data, s.ttl()).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cart %s already exists", meta.ID)
	}
	return nil
}

// Meta loads the cart header, returning ErrCartNotFound when absent or expired.
func (s *Store) Meta(ctx context.Context, id uuid.UUID) (Meta, error) {
	data, err := s.R.Get(ctx, cache.KeyCart(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Meta{}, ErrCartNotFound
		}
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return meta, nil
}

type storedLine struct {
	Quantity  int    `json:"q"`
	AddedAt   int64  `json:"a"`
	Seq       int64  `json:"s,omitempty"`
	Promotion string `json:"p,omitempty"`
}

func encodeLine(e Entry) ([]byte, error) {
	line := storedLine{Quantity: e.Quantity, AddedAt: e.AddedAt.UnixNano(), Seq: e.Seq}
	if e.AppliedPromotionID != uuid.Nil {
		line.Promotion = e.AppliedPromotionID.String()
	}
	return json.Marshal(line)
}

func decodeLine(itemID uuid.UUID, value string) (Entry, error) {
	var line storedLine
	if err := json.Unmarshal([]byte(value), &line); err != nil {
		return Entry{}, err
	}
	e := Entry{ItemID: itemID, Quantity: line.Quantity, AddedAt: time.Unix(0, line.AddedAt).UTC(), Seq: line.Seq}
	if line.Promotion != "" {
		promoID, err := uuid.Parse(line.Promotion)
		if err != nil {
			return Entry{}, err
		}
		e.AppliedPromotionID = promoID
	}
	return e, nil
}

// Entries returns one atomic snapshot of the cart's lines in the order they
// were first added.
func (s *Store) Entries(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	raw, err := s.R.HGetAll(ctx, cache.KeyCartLines(id)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for field, value := range raw {
		itemID, err := uuid.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad line key %q: %w", id, field, err)
		}
		e, err := decodeLine(itemID, value)
		if err != nil {
			return nil, fmt.Errorf("cart %s: decode line %s: %w", id, field, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ItemID.String() < out[j].ItemID.String()
	})
	return out, nil
}

// Put stores e and refreshes the cart TTL. A line without a sequence number
// takes the next one for the cart. Callers hold the cart lock.
func (s *Store) Put(ctx context.Context, id uuid.UUID, e Entry) error {
	if e.Seq == 0 {
		seq, err := s.R.Incr(ctx, cache.KeyCartSeq(id)).Result()
		if err != nil {
			return err
		}
		e.Seq = seq
	}
	data, err := encodeLine(e)
	if err != nil {
		return err
	}
	_, err = s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cache.KeyCartLines(id), e.ItemID.String(), data)
		s.touch(ctx, pipe, id)
		return nil
	})
	return err
}

// Remove deletes the line for itemID, reporting whether it existed.
func (s *Store) Remove(ctx context.Context, id, itemID uuid.UUID) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, cache.KeyCartLines(id), itemID.String())
		s.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

// RecordPromotion stores promoID as the promotion applied to e's line. The
// write is dropped when the stored line no longer matches e, which means a
// mutation got there first and repriced it itself.
func (s *Store) RecordPromotion(ctx context.Context, id uuid.UUID, e Entry, promoID uuid.UUID) error {
	key := cache.KeyCartLines(id)
	seen, err := encodeLine(e)
	if err != nil {
		return err
	}
	next := e
	next.AppliedPromotionID = promoID
	data, err := encodeLine(next)
	if err != nil {
		return err
	}
	err = s.R.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, e.ItemID.String()).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != string(seen) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, e.ItemID.String(), data)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (s *Store) touch(ctx context.Context, pipe redis.Pipeliner, id uuid.UUID) {
	pipe.Expire(ctx, cache.KeyCart(id), s.ttl())
	pipe.Expire(ctx, cache.KeyCartLines(id), s.ttl())
	pipe.Expire(ctx, cache.KeyCartSeq(id), s.ttl())
}
