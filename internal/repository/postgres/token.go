package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type tokenRepository struct {
	q sqlx.ExtContext
}

// LockDay takes row locks on the doctor's slots for the day, in id order so
// two bookings cannot deadlock. Concurrent bookings for the same day queue
// here, so the max-plus-one read below always sees every committed token.
// The unique (doctor_id, slot_date, token_no) constraint backs this up.
func (r *tokenRepository) LockDay(ctx context.Context, doctorID int64, date string) error {
	query := `SELECT id FROM slots WHERE doctor_id = $1 AND slot_date = $2 ORDER BY id FOR UPDATE`
	if _, err := r.q.ExecContext(ctx, query, doctorID, date); err != nil {
		return apperrors.StoreFailure("lock day", err)
	}
	return nil
}

func (r *tokenRepository) MaxForDay(ctx context.Context, doctorID int64, date string) (int, error) {
	query := `SELECT COALESCE(MAX(token_no), 0) FROM tokens WHERE doctor_id = $1 AND slot_date = $2`
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, query, doctorID, date); err != nil {
		return 0, apperrors.StoreFailure("read max token", err)
	}
	return n, nil
}

func (r *tokenRepository) Create(ctx context.Context, token *model.Token) error {
	query := `
		INSERT INTO tokens (appointment_id, doctor_id, slot_date, token_no)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.q.ExecContext(ctx, query, token.AppointmentID, token.DoctorID, token.Date, token.TokenNo)
	if isUniqueViolation(err) {
		return apperrors.Conflict("token number already issued", err)
	}
	if err != nil {
		return apperrors.StoreFailure("create token", err)
	}
	return nil
}
