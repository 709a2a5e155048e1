package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type receptionistRepository struct {
	q sqlx.ExtContext
}

const receptionistColumns = `id, user_id, name, gender, email, contact_no, address, created_at`

func (r *receptionistRepository) Create(ctx context.Context, rec *model.Receptionist) error {
	query := `
		INSERT INTO receptionists (user_id, name, gender, email, contact_no, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		rec.UserID,
		rec.Name,
		rec.Gender,
		rec.Email,
		rec.ContactNo,
		rec.Address,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return apperrors.StoreFailure("create receptionist", err)
	}
	return nil
}

func (r *receptionistRepository) Get(ctx context.Context, id int64) (*model.Receptionist, error) {
	var rec model.Receptionist
	if err := getOne(ctx, r.q, &rec, "receptionist", `SELECT `+receptionistColumns+` FROM receptionists WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *receptionistRepository) GetByUserID(ctx context.Context, userID int64) (*model.Receptionist, error) {
	var rec model.Receptionist
	if err := getOne(ctx, r.q, &rec, "receptionist", `SELECT `+receptionistColumns+` FROM receptionists WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &rec, nil
}

type adminRepository struct {
	q sqlx.ExtContext
}

func (r *adminRepository) Create(ctx context.Context, admin *model.Admin) error {
	err := r.q.QueryRowxContext(ctx,
		`INSERT INTO admins (user_id, name) VALUES ($1, $2) RETURNING id, created_at`,
		admin.UserID, admin.Name,
	).Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		return apperrors.StoreFailure("create admin", err)
	}
	return nil
}

func (r *adminRepository) GetByUserID(ctx context.Context, userID int64) (*model.Admin, error) {
	var admin model.Admin
	if err := getOne(ctx, r.q, &admin, "admin", `SELECT id, user_id, name, created_at FROM admins WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &admin, nil
}

type userRepository struct {
	q sqlx.ExtContext
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.q.QueryRowxContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3) RETURNING id, created_at`,
		user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return apperrors.Conflict("username already taken", err)
	}
	if err != nil {
		return apperrors.StoreFailure("create user", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := getOne(ctx, r.q, &user, "user", `SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := getOne(ctx, r.q, &user, "user", `SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`, username); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete relies on ON DELETE CASCADE to remove the profile row. A doctor still
// referenced by appointments makes the cascade fail with a foreign key error.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return apperrors.Conflict("user is still referenced by appointments", err)
	}
	if err != nil {
		return apperrors.StoreFailure("delete user", err)
	}
	return requireAffected(res, "user")
}

func (r *userRepository) ListStaff(ctx context.Context) ([]*model.StaffMember, error) {
	query := `
		SELECT d.id, 'doctor' AS role, d.name, d.email, u.username, sp.title AS specialization
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		JOIN specializations sp ON sp.id = d.specialization_id
		UNION ALL
		SELECT r.id, 'receptionist' AS role, r.name, r.email, u.username, '' AS specialization
		FROM receptionists r
		JOIN users u ON u.id = r.user_id
		ORDER BY role, name
	`
	staff := []*model.StaffMember{}
	if err := sqlx.SelectContext(ctx, r.q, &staff, query); err != nil {
		return nil, apperrors.StoreFailure("list staff", err)
	}
	return staff, nil
}
