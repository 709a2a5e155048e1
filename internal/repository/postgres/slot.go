package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const slotColumns = `id, doctor_id,
	to_char(slot_date, 'YYYY-MM-DD') AS slot_date,
	to_char(slot_time, 'HH24:MI') AS slot_time,
	appointment_id, created_at`

type slotRepository struct {
	q sqlx.ExtContext
}

func (r *slotRepository) Get(ctx context.Context, id int64) (*model.Slot, error) {
	var slot model.Slot
	if err := getOne(ctx, r.q, &slot, "slot", `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *slotRepository) Exists(ctx context.Context, doctorID int64, date, time string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
		)
	`
	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, query, doctorID, date, time); err != nil {
		return false, apperrors.StoreFailure("check slot", err)
	}
	return exists, nil
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (doctor_id, slot_date, slot_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
		RETURNING id, created_at
	`
	err := r.q.QueryRowxContext(ctx, query, slot.DoctorID, slot.Date, slot.Time).
		Scan(&slot.ID, &slot.CreatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.Conflict("slot already exists", nil)
	case isForeignKeyViolation(err):
		return apperrors.NotFound("doctor", err)
	default:
		return apperrors.StoreFailure("create slot", err)
	}
}

func (r *slotRepository) ListAvailable(ctx context.Context, doctorID int64, date string) ([]string, error) {
	query := `
		SELECT to_char(slot_time, 'HH24:MI')
		FROM slots
		WHERE doctor_id = $1 AND slot_date = $2 AND appointment_id IS NULL
		ORDER BY slot_time ASC
	`
	times := []string{}
	if err := sqlx.SelectContext(ctx, r.q, &times, query, doctorID, date); err != nil {
		return nil, apperrors.StoreFailure("list available slots", err)
	}
	return times, nil
}

func (r *slotRepository) ListByDoctor(ctx context.Context, doctorID int64, fromDate string) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots
		WHERE doctor_id = $1 AND slot_date >= $2
		ORDER BY slot_date ASC, slot_time ASC
	`
	slots := []*model.Slot{}
	if err := sqlx.SelectContext(ctx, r.q, &slots, query, doctorID, fromDate); err != nil {
		return nil, apperrors.StoreFailure("list slots", err)
	}
	return slots, nil
}

func (r *slotRepository) Bind(ctx context.Context, doctorID int64, date, time string, appointmentID int64) (*model.Slot, error) {
	query := `
		UPDATE slots SET appointment_id = $4
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
		  AND appointment_id IS NULL
		RETURNING ` + slotColumns
	var slot model.Slot
	err := sqlx.GetContext(ctx, r.q, &slot, query, doctorID, date, time, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.SlotUnavailable("the requested slot is not available")
	}
	if err != nil {
		return nil, apperrors.StoreFailure("bind slot", err)
	}
	return &slot, nil
}

func (r *slotRepository) DeleteUnbound(ctx context.Context, slotID, doctorID int64) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM slots WHERE id = $1 AND doctor_id = $2 AND appointment_id IS NULL`,
		slotID, doctorID,
	)
	if err != nil {
		return apperrors.StoreFailure("delete slot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.StoreFailure("delete slot", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing was deleted; find out why for the caller.
	var booked bool
	err = sqlx.GetContext(ctx, r.q, &booked,
		`SELECT appointment_id IS NOT NULL FROM slots WHERE id = $1 AND doctor_id = $2`,
		slotID, doctorID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("slot", nil)
	}
	if err != nil {
		return apperrors.StoreFailure("delete slot", err)
	}
	if booked {
		return apperrors.Conflict("slot is booked and cannot be deleted", nil)
	}
	return apperrors.Conflict("slot changed during delete", nil)
}
