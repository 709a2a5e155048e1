package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/pkg/reference"
)

// All repository interfaces in one file.
//
// Lookups that find nothing return an error carrying apperrors.ErrNotFound.
// Driver and transport faults are wrapped as apperrors.ErrStoreFailure.
type (
	PatientRepository interface {
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		// FindOrCreate stores p unless a patient with p.Email exists. Either
		// way p is filled with the stored row; created reports which case
		// applied. Existing rows are never updated.
		FindOrCreate(ctx context.Context, p *model.Patient) (created bool, err error)
	}

	SlotRepository interface {
		Get(ctx context.Context, id int64) (*model.Slot, error)
		// Exists reports whether any slot row, bound or not, exists for the triple.
		Exists(ctx context.Context, doctorID int64, date, time string) (bool, error)
		// Create fails with ErrConflict when the triple already exists.
		Create(ctx context.Context, slot *model.Slot) error
		// ListAvailable returns the times of unbound slots, ascending.
		ListAvailable(ctx context.Context, doctorID int64, date string) ([]string, error)
		ListByDoctor(ctx context.Context, doctorID int64, fromDate string) ([]*model.Slot, error)
		// Bind attaches an appointment to the unbound slot for the triple in a
		// single conditional update. Fails with ErrSlotUnavailable when the
		// slot is missing or already bound.
		Bind(ctx context.Context, doctorID int64, date, time string, appointmentID int64) (*model.Slot, error)
		// DeleteUnbound removes the doctor's slot only while it is unbound, in
		// a single conditional delete. Fails with ErrConflict when bound and
		// ErrNotFound when the doctor has no such slot.
		DeleteUnbound(ctx context.Context, slotID, doctorID int64) error
	}

	TokenRepository interface {
		// LockDay serializes token allocation for a doctor's day until the
		// surrounding transaction ends.
		LockDay(ctx context.Context, doctorID int64, date string) error
		// MaxForDay returns the highest token issued for the day, or 0.
		MaxForDay(ctx context.Context, doctorID int64, date string) (int, error)
		// Create fails with ErrConflict when the number is already taken.
		Create(ctx context.Context, token *model.Token) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.Appointment, error)
		FindByReference(ctx context.Context, ref reference.Tuple) (*model.AppointmentView, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentView, error)
		CountByDoctor(ctx context.Context, doctorID int64) (int, error)
		// SetCompleted fails with ErrNotFound unless the appointment belongs to doctorID.
		SetCompleted(ctx context.Context, id, doctorID int64, completed bool) error
		// MarkConfirmed sets confirmed and reports whether this call changed
		// it. Concurrent callers on one appointment see changed=true once.
		MarkConfirmed(ctx context.Context, id int64) (changed bool, err error)
	}

	ConfirmationRepository interface {
		Get(ctx context.Context, appointmentID int64) (*model.Confirmation, error)
		// Upsert inserts the confirmation or, if one exists for the
		// appointment, leaves it confirmed. Safe under concurrent callers.
		Upsert(ctx context.Context, confirmation *model.Confirmation) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Doctor, error)
		UpdateProfile(ctx context.Context, doctor *model.Doctor) error
		ListBySpecialization(ctx context.Context, specializationID int64) ([]*model.DoctorSummary, error)
		CreateSpecialization(ctx context.Context, spec *model.Specialization) error
		ListSpecializations(ctx context.Context) ([]*model.Specialization, error)
	}

	ReceptionistRepository interface {
		Create(ctx context.Context, receptionist *model.Receptionist) error
		Get(ctx context.Context, id int64) (*model.Receptionist, error)
		GetByUserID(ctx context.Context, userID int64) (*model.Receptionist, error)
	}

	AdminRepository interface {
		Create(ctx context.Context, admin *model.Admin) error
		GetByUserID(ctx context.Context, userID int64) (*model.Admin, error)
	}

	UserRepository interface {
		// Create fails with ErrConflict when the username is taken.
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		// Delete removes the user together with its profile row.
		Delete(ctx context.Context, id int64) error
		ListStaff(ctx context.Context) ([]*model.StaffMember, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ListPending returns pending events oldest first. Inside a
		// transaction the rows stay locked for this caller until it ends.
		ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		// DeleteProcessedBefore purges processed events older than cutoff and
		// returns how many went.
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// Repositories is the set of repositories bound to one connection or
	// transaction.
	Repositories interface {
		Patients() PatientRepository
		Slots() SlotRepository
		Tokens() TokenRepository
		Appointments() AppointmentRepository
		Confirmations() ConfirmationRepository
		Doctors() DoctorRepository
		Receptionists() ReceptionistRepository
		Admins() AdminRepository
		Users() UserRepository
		Outbox() OutboxRepository
	}

	// Store is the persisted state of the application. Calls made on the
	// store directly auto-commit; WithTx runs fn in one transaction that is
	// committed when fn returns nil and rolled back otherwise.
	Store interface {
		Repositories
		WithTx(ctx context.Context, fn func(Repositories) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
