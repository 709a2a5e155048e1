package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const patientColumns = `id, name, email, contact_no, address,
	to_char(date_of_birth, 'YYYY-MM-DD') AS date_of_birth, gender, created_at`

type patientRepository struct {
	q sqlx.ExtContext
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	var p model.Patient
	if err := getOne(ctx, r.q, &p, "patient", `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	var p model.Patient
	if err := getOne(ctx, r.q, &p, "patient", `SELECT `+patientColumns+` FROM patients WHERE email = $1`, email); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) FindOrCreate(ctx context.Context, p *model.Patient) (bool, error) {
	query := `
		INSERT INTO patients (name, email, contact_no, address, date_of_birth, gender)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		p.Name,
		p.Email,
		p.ContactNo,
		p.Address,
		p.DateOfBirth,
		p.Gender,
	).Scan(&p.ID, &p.CreatedAt)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := r.GetByEmail(ctx, p.Email)
		if err != nil {
			return false, err
		}
		*p = *existing
		return false, nil
	default:
		return false, apperrors.StoreFailure("create patient", err)
	}
}
