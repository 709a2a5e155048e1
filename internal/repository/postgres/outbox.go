package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type outboxRepository struct {
	q sqlx.ExtContext
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return apperrors.InvalidInput("outbox event and payload are required", nil)
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		string(event.Payload),
		event.Status,
		event.Attempts,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.StoreFailure("create outbox event", err)
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload::text AS payload, status, error_message,
			attempts, created_at, processed_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	events := []*model.OutboxEvent{}
	if err := sqlx.SelectContext(ctx, r.q, &events, query, model.OutboxStatusPending, limit); err != nil {
		return nil, apperrors.StoreFailure("list pending events", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $2, attempts = attempts + 1, processed_at = NOW(), error_message = NULL
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query, id, model.OutboxStatusProcessed)
	if err != nil {
		return apperrors.StoreFailure("mark event processed", err)
	}
	return requireAffected(res, "outbox event")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE outbox_events
		SET status = $2, attempts = attempts + 1, error_message = $3
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query, id, model.OutboxStatusFailed, errorMessage)
	if err != nil {
		return apperrors.StoreFailure("mark event failed", err)
	}
	return requireAffected(res, "outbox event")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`
	res, err := r.q.ExecContext(ctx, query, model.OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, apperrors.StoreFailure("purge processed events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.StoreFailure("purge processed events", err)
	}
	return n, nil
}
