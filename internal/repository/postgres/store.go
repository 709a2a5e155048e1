package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/repository"
)

// Store is the sqlx implementation of repository.Store.
type Store struct {
	BaseRepository
	repos
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		BaseRepository: NewBaseRepository(db),
		repos:          repos{q: db},
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	return s.BaseRepository.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(repos{q: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// repos binds every repository to one *sqlx.DB or *sqlx.Tx.
type repos struct {
	q sqlx.ExtContext
}

func (r repos) Patients() repository.PatientRepository {
	return &patientRepository{q: r.q}
}

func (r repos) Slots() repository.SlotRepository {
	return &slotRepository{q: r.q}
}

func (r repos) Tokens() repository.TokenRepository {
	return &tokenRepository{q: r.q}
}

func (r repos) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{q: r.q}
}

func (r repos) Confirmations() repository.ConfirmationRepository {
	return &confirmationRepository{q: r.q}
}

func (r repos) Doctors() repository.DoctorRepository {
	return &doctorRepository{q: r.q}
}

func (r repos) Receptionists() repository.ReceptionistRepository {
	return &receptionistRepository{q: r.q}
}

func (r repos) Admins() repository.AdminRepository {
	return &adminRepository{q: r.q}
}

func (r repos) Users() repository.UserRepository {
	return &userRepository{q: r.q}
}

func (r repos) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: r.q}
}

var _ repository.Store = (*Store)(nil)
