package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const doctorSelect = `
	SELECT d.id, d.user_id, d.name, d.gender, d.email, d.contact_no, d.address,
		d.specialization_id, sp.title AS specialization, d.created_at
	FROM doctors d
	JOIN specializations sp ON sp.id = d.specialization_id
`

type doctorRepository struct {
	q sqlx.ExtContext
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (user_id, name, gender, email, contact_no, address, specialization_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		doctor.UserID,
		doctor.Name,
		doctor.Gender,
		doctor.Email,
		doctor.ContactNo,
		doctor.Address,
		doctor.SpecializationID,
	).Scan(&doctor.ID, &doctor.CreatedAt)
	if isForeignKeyViolation(err) {
		return apperrors.InvalidInput("unknown specialization", err)
	}
	if err != nil {
		return apperrors.StoreFailure("create doctor", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	var d model.Doctor
	if err := getOne(ctx, r.q, &d, "doctor", doctorSelect+` WHERE d.id = $1`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error) {
	var d model.Doctor
	if err := getOne(ctx, r.q, &d, "doctor", doctorSelect+` WHERE d.user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepository) UpdateProfile(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $2, email = $3, contact_no = $4, address = $5
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Email,
		doctor.ContactNo,
		doctor.Address,
	)
	if err != nil {
		return apperrors.StoreFailure("update doctor", err)
	}
	return requireAffected(res, "doctor")
}

func (r *doctorRepository) ListBySpecialization(ctx context.Context, specializationID int64) ([]*model.DoctorSummary, error) {
	query := `SELECT id, name FROM doctors WHERE specialization_id = $1 ORDER BY name ASC`
	doctors := []*model.DoctorSummary{}
	if err := sqlx.SelectContext(ctx, r.q, &doctors, query, specializationID); err != nil {
		return nil, apperrors.StoreFailure("list doctors", err)
	}
	return doctors, nil
}

func (r *doctorRepository) CreateSpecialization(ctx context.Context, spec *model.Specialization) error {
	err := r.q.QueryRowxContext(ctx,
		`INSERT INTO specializations (title) VALUES ($1) RETURNING id`, spec.Title,
	).Scan(&spec.ID)
	if isUniqueViolation(err) {
		return apperrors.Conflict("specialization already exists", err)
	}
	if err != nil {
		return apperrors.StoreFailure("create specialization", err)
	}
	return nil
}

func (r *doctorRepository) ListSpecializations(ctx context.Context) ([]*model.Specialization, error) {
	specs := []*model.Specialization{}
	if err := sqlx.SelectContext(ctx, r.q, &specs, `SELECT id, title FROM specializations ORDER BY title ASC`); err != nil {
		return nil, apperrors.StoreFailure("list specializations", err)
	}
	return specs, nil
}
