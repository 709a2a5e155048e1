package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type outboxRepository repos

func (r outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return apperrors.InvalidInput("outbox event and payload are required", nil)
	}
	return r.run(ctx, func(st *state) error {
		if _, ok := st.outbox[event.ID]; ok {
			return apperrors.Conflict("outbox event already exists", nil)
		}
		e := *event
		e.Payload = append([]byte(nil), event.Payload...)
		st.outbox[e.ID] = e
		return nil
	})
}

func (r outboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	events := []*model.OutboxEvent{}
	err := r.run(ctx, func(st *state) error {
		for _, e := range st.outbox {
			if e.Status == model.OutboxStatusPending {
				e := e
				events = append(events, &e)
			}
		}
		return nil
	})
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, err
}

func (r outboxRepository) mark(ctx context.Context, id uuid.UUID, update func(*model.OutboxEvent)) error {
	return r.run(ctx, func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return apperrors.NotFound("outbox event", nil)
		}
		e.Attempts++
		update(&e)
		st.outbox[id] = e
		return nil
	})
}

func (r outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.mark(ctx, id, func(e *model.OutboxEvent) {
		now := r.now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.mark(ctx, id, func(e *model.OutboxEvent) {
		msg := errorMessage
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &msg
	})
}

func (r outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.run(ctx, func(st *state) error {
		for id, e := range st.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
				delete(st.outbox, id)
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
