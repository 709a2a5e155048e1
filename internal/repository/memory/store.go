// Package memory is an in-process repository.Store. Transactions are
// serialized behind one mutex and applied copy-on-write, so a failed
// transaction leaves no trace. It backs the service tests and the "memory"
// database driver for local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type state struct {
	seq map[string]int64

	patients        map[int64]model.Patient
	slots           map[int64]model.Slot
	tokens          map[int64]model.Token
	appointments    map[int64]model.Appointment
	confirmations   map[int64]model.Confirmation
	specializations map[int64]model.Specialization
	doctors         map[int64]model.Doctor
	receptionists   map[int64]model.Receptionist
	admins          map[int64]model.Admin
	users           map[int64]model.User
	outbox          map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		seq:             map[string]int64{},
		patients:        map[int64]model.Patient{},
		slots:           map[int64]model.Slot{},
		tokens:          map[int64]model.Token{},
		appointments:    map[int64]model.Appointment{},
		confirmations:   map[int64]model.Confirmation{},
		specializations: map[int64]model.Specialization{},
		doctors:         map[int64]model.Doctor{},
		receptionists:   map[int64]model.Receptionist{},
		admins:          map[int64]model.Admin{},
		users:           map[int64]model.User{},
		outbox:          map[uuid.UUID]model.OutboxEvent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table. Rows are stored by value; the only pointer
// field, Slot.AppointmentID, is replaced rather than mutated in place.
func (s *state) clone() *state {
	return &state{
		seq:             cloneMap(s.seq),
		patients:        cloneMap(s.patients),
		slots:           cloneMap(s.slots),
		tokens:          cloneMap(s.tokens),
		appointments:    cloneMap(s.appointments),
		confirmations:   cloneMap(s.confirmations),
		specializations: cloneMap(s.specializations),
		doctors:         cloneMap(s.doctors),
		receptionists:   cloneMap(s.receptionists),
		admins:          cloneMap(s.admins),
		users:           cloneMap(s.users),
		outbox:          cloneMap(s.outbox),
	}
}

func (s *state) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type runFunc func(ctx context.Context, fn func(*state) error) error

// Store implements repository.Store in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
	repos
}

func NewStore() *Store {
	s := &Store{st: newState(), now: time.Now}
	s.repos = repos{run: s.autocommit, now: s.clock}
	return s
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// autocommit runs a single repository call as its own transaction.
func (s *Store) autocommit(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// WithTx holds the store lock for the whole of fn. Repositories handed to fn
// must not be used after it returns, and fn must not call the Store itself.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	tx := repos{
		run: func(ctx context.Context, f func(*state) error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return f(work)
		},
		now: s.clock,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

type repos struct {
	run runFunc
	now func() time.Time
}

func (r repos) Patients() repository.PatientRepository           { return patientRepository(r) }
func (r repos) Slots() repository.SlotRepository                 { return slotRepository(r) }
func (r repos) Tokens() repository.TokenRepository               { return tokenRepository(r) }
func (r repos) Appointments() repository.AppointmentRepository   { return appointmentRepository(r) }
func (r repos) Confirmations() repository.ConfirmationRepository { return confirmationRepository(r) }
func (r repos) Doctors() repository.DoctorRepository             { return doctorRepository(r) }
func (r repos) Receptionists() repository.ReceptionistRepository { return receptionistRepository(r) }
func (r repos) Admins() repository.AdminRepository               { return adminRepository(r) }
func (r repos) Users() repository.UserRepository                 { return userRepository(r) }
func (r repos) Outbox() repository.OutboxRepository              { return outboxRepository(r) }

var _ repository.Store = (*Store)(nil)
