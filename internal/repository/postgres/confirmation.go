package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type confirmationRepository struct {
	q sqlx.ExtContext
}

func (r *confirmationRepository) Get(ctx context.Context, appointmentID int64) (*model.Confirmation, error) {
	query := `
		SELECT appointment_id, COALESCE(receptionist_id, 0) AS receptionist_id, confirmed, confirmed_at
		FROM confirmations
		WHERE appointment_id = $1
	`
	var c model.Confirmation
	if err := getOne(ctx, r.q, &c, "confirmation", query, appointmentID); err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert keeps the first confirming receptionist and timestamp; repeated
// confirmations only reassert confirmed.
func (r *confirmationRepository) Upsert(ctx context.Context, c *model.Confirmation) error {
	query := `
		INSERT INTO confirmations (appointment_id, receptionist_id, confirmed, confirmed_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (appointment_id) DO UPDATE SET confirmed = TRUE
		RETURNING COALESCE(receptionist_id, 0), confirmed, confirmed_at
	`
	err := r.q.QueryRowxContext(ctx, query, c.AppointmentID, c.ReceptionistID, c.ConfirmedAt).
		Scan(&c.ReceptionistID, &c.Confirmed, &c.ConfirmedAt)
	if isForeignKeyViolation(err) {
		return apperrors.NotFound("appointment or receptionist", err)
	}
	if err != nil {
		return apperrors.StoreFailure("upsert confirmation", err)
	}
	return nil
}
