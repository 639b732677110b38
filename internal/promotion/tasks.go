package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/obs"
)

// TypeBoundary is the asynq task type fired at a promotion's start or end.
const TypeBoundary = "promotion:boundary"

const (
	TransitionStarted = "started"
	TransitionEnded   = "ended"
)

// BoundaryPayload identifies one boundary of one promotion.
type BoundaryPayload struct {
	PromotionID uuid.UUID `json:"promotionId"`
	Transition  string    `json:"transition"`
	At          time.Time `json:"at"`
}

// NewBoundaryTask builds the task for payload.
func NewBoundaryTask(payload BoundaryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBoundary, data), nil
}

// BoundaryTaskID is stable for a promotion, transition and instant, so
// rescheduling an unchanged boundary is a no-op.
func BoundaryTaskID(payload BoundaryPayload) string {
	return fmt.Sprintf("promotion:%s:%s:%d", payload.PromotionID, payload.Transition, payload.At.Unix())
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskScheduler enqueues boundary tasks with asynq.
type TaskScheduler struct {
	Client enqueuer
	Queue  string
}

// NewTaskScheduler wraps an asynq client.
func NewTaskScheduler(client *asynq.Client, queue string) *TaskScheduler {
	return &TaskScheduler{Client: client, Queue: queue}
}

// Schedule enqueues a task for each boundary of p still ahead of now.
func (s *TaskScheduler) Schedule(ctx context.Context, p Promotion, now time.Time) error {
	if s == nil || s.Client == nil || p.IsDeleted {
		return nil
	}
	var errs []error
	for _, payload := range boundaryPayloads(p, now) {
		task, err := NewBoundaryTask(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		opts := []asynq.Option{
			asynq.ProcessAt(payload.At),
			asynq.TaskID(BoundaryTaskID(payload)),
			asynq.MaxRetry(5),
		}
		if s.Queue != "" {
			opts = append(opts, asynq.Queue(s.Queue))
		}
		if _, err := s.Client.EnqueueContext(ctx, task, opts...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", payload.Transition, err))
		}
	}
	return errors.Join(errs...)
}

func boundaryPayloads(p Promotion, now time.Time) []BoundaryPayload {
	var out []BoundaryPayload
	if p.StartDate.After(now) {
		out = append(out, BoundaryPayload{PromotionID: p.ID, Transition: TransitionStarted, At: p.StartDate})
	}
	if p.EndDate.After(now) {
		// fire just past the inclusive end so the first read after it sees the promotion ended
		out = append(out, BoundaryPayload{PromotionID: p.ID, Transition: TransitionEnded, At: p.EndDate.Add(time.Second)})
	}
	return out
}

// BoundaryHandler refreshes cached state when a promotion starts or ends.
type BoundaryHandler struct {
	Store       AdminStore
	Invalidator Invalidator
	Logger      zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *BoundaryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload BoundaryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode boundary payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx, span := obs.Tracer("promotion").Start(ctx, "promotion.boundary")
	defer span.End()
	span.SetAttributes(
		obs.AttrPromotionID.String(payload.PromotionID.String()),
		obs.AttrOperation.String(payload.Transition),
	)
	logger := h.Logger.With().
		Str("promotion_id", payload.PromotionID.String()).
		Str("transition", payload.Transition).
		Logger()

	p, err := h.Store.Promotion(ctx, payload.PromotionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info().Msg("boundary for unknown promotion skipped")
			return nil
		}
		return err
	}
	items, err := h.Store.LinkedItems(ctx, p.ID)
	if err != nil {
		return err
	}
	if h.Invalidator != nil && len(items) > 0 {
		if err := h.Invalidator.Invalidate(ctx, items...); err != nil {
			return err
		}
	}
	if p.IsDeleted || !matchesBoundary(p, payload) {
		logger.Debug().Msg("stale boundary; cache refreshed only")
		return nil
	}
	obs.IncCounter(obs.PromotionTransitionTotal, payload.Transition)
	logger.Info().Int("items", len(items)).Msg("promotion transition")
	return nil
}

func matchesBoundary(p Promotion, payload BoundaryPayload) bool {
	for _, b := range boundaryPayloads(p, time.Time{}) {
		if b.Transition == payload.Transition && b.At.Equal(payload.At) {
			return true
		}
	}
	return false
}
