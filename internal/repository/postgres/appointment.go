package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/reference"
)

const appointmentViewSelect = `
	SELECT a.id AS appointment_id, a.reason, a.completed, a.confirmed,
		p.id AS patient_id, p.name AS patient_name, p.contact_no AS patient_contact,
		d.id AS doctor_id, d.name AS doctor_name, sp.title AS specialization,
		s.id AS slot_id,
		to_char(s.slot_date, 'YYYY-MM-DD') AS slot_date,
		to_char(s.slot_time, 'HH24:MI') AS slot_time,
		t.token_no, r.name AS receptionist_name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN specializations sp ON sp.id = d.specialization_id
	JOIN slots s ON s.appointment_id = a.id
	JOIN tokens t ON t.appointment_id = a.id
	LEFT JOIN confirmations c ON c.appointment_id = a.id
	LEFT JOIN receptionists r ON r.id = c.receptionist_id
`

type appointmentRepository struct {
	q sqlx.ExtContext
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (reason, doctor_id, patient_id, completed, confirmed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		appointment.Reason,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.Completed,
		appointment.Confirmed,
	).Scan(&appointment.ID, &appointment.CreatedAt)
	if isForeignKeyViolation(err) {
		return apperrors.NotFound("doctor or patient", err)
	}
	if err != nil {
		return apperrors.StoreFailure("create appointment", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT id, reason, doctor_id, patient_id, completed, confirmed, created_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := getOne(ctx, r.q, &appointment, "appointment", query, id); err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindByReference(ctx context.Context, ref reference.Tuple) (*model.AppointmentView, error) {
	query := appointmentViewSelect + `
		WHERE a.patient_id = $1 AND a.doctor_id = $2 AND t.token_no = $3 AND s.id = $4
	`
	var view model.AppointmentView
	if err := getOne(ctx, r.q, &view, "appointment", query, ref.PatientID, ref.DoctorID, ref.TokenNo, ref.SlotID); err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentView, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filters != nil {
		if filters.DoctorID > 0 {
			add("a.doctor_id = $%d", filters.DoctorID)
		}
		if filters.Date != "" {
			add("s.slot_date = $%d", filters.Date)
		}
		switch filters.Status {
		case model.VisitStatusPending:
			conds = append(conds, "a.completed = FALSE")
		case model.VisitStatusCompleted:
			conds = append(conds, "a.completed = TRUE")
		}
		if filters.ConfirmedOnly {
			conds = append(conds, "a.confirmed = TRUE")
		}
	}

	query := appointmentViewSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.confirmed ASC, s.slot_date ASC, s.slot_time ASC"

	views := []*model.AppointmentView{}
	if err := sqlx.SelectContext(ctx, r.q, &views, query, args...); err != nil {
		return nil, apperrors.StoreFailure("list appointments", err)
	}
	return views, nil
}

func (r *appointmentRepository) CountByDoctor(ctx context.Context, doctorID int64) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1`, doctorID); err != nil {
		return 0, apperrors.StoreFailure("count appointments", err)
	}
	return n, nil
}

func (r *appointmentRepository) SetCompleted(ctx context.Context, id, doctorID int64, completed bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE appointments SET completed = $3 WHERE id = $1 AND doctor_id = $2`,
		id, doctorID, completed,
	)
	if err != nil {
		return apperrors.StoreFailure("update appointment", err)
	}
	return requireAffected(res, "appointment")
}

// MarkConfirmed only updates an unconfirmed row. A second confirmer blocks on
// the first one's row lock and then matches nothing.
func (r *appointmentRepository) MarkConfirmed(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE appointments SET confirmed = TRUE WHERE id = $1 AND NOT confirmed`, id)
	if err != nil {
		return false, apperrors.StoreFailure("confirm appointment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.StoreFailure("rows affected", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
		return false, apperrors.StoreFailure("confirm appointment", err)
	}
	if !exists {
		return false, apperrors.NotFound("appointment", nil)
	}
	return false, nil
}
