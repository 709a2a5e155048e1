// Package storetest is a conformance suite run against every
// repository.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/reference"
)

const Day = "2031-05-14"

// Factory returns an empty store.
type Factory func(t *testing.T) repository.Store

// Fixture is the minimal staff a booking needs.
type Fixture struct {
	Specialization *model.Specialization
	Doctor         *model.Doctor
	Receptionist   *model.Receptionist
}

// Seed creates one specialization, one doctor and one receptionist.
func Seed(t *testing.T, ctx context.Context, store repository.Store) *Fixture {
	t.Helper()

	spec := &model.Specialization{Title: "Cardiology"}
	require.NoError(t, store.Doctors().CreateSpecialization(ctx, spec))

	docUser := &model.User{Username: "dr.house", PasswordHash: "x", Role: model.RoleDoctor}
	require.NoError(t, store.Users().Create(ctx, docUser))
	doctor := &model.Doctor{
		UserID:           docUser.ID,
		Name:             "Gregory House",
		Gender:           model.GenderMale,
		Email:            "house@example.com",
		ContactNo:        "555-0100",
		Address:          "Princeton",
		SpecializationID: spec.ID,
	}
	require.NoError(t, store.Doctors().Create(ctx, doctor))

	recUser := &model.User{Username: "front.desk", PasswordHash: "x", Role: model.RoleReceptionist}
	require.NoError(t, store.Users().Create(ctx, recUser))
	rec := &model.Receptionist{
		UserID:    recUser.ID,
		Name:      "Pam Beesly",
		Gender:    model.GenderFemale,
		Email:     "pam@example.com",
		ContactNo: "555-0101",
		Address:   "Scranton",
	}
	require.NoError(t, store.Receptionists().Create(ctx, rec))

	return &Fixture{Specialization: spec, Doctor: doctor, Receptionist: rec}
}

func patient(email string) *model.Patient {
	return &model.Patient{
		Name:        "Ada Lovelace",
		Email:       email,
		ContactNo:   "555-0199",
		Address:     "London",
		DateOfBirth: "1990-12-10",
		Gender:      model.GenderFemale,
	}
}

// book performs a minimal booking inside one transaction.
func book(t *testing.T, ctx context.Context, store repository.Store, doctorID int64, email, at string) (*model.Appointment, *model.Slot) {
	t.Helper()
	var (
		appt *model.Appointment
		slot *model.Slot
	)
	err := store.WithTx(ctx, func(repos repository.Repositories) error {
		p := patient(email)
		if _, err := repos.Patients().FindOrCreate(ctx, p); err != nil {
			return err
		}
		appt = &model.Appointment{Reason: "checkup", DoctorID: doctorID, PatientID: p.ID}
		if err := repos.Appointments().Create(ctx, appt); err != nil {
			return err
		}
		var err error
		slot, err = repos.Slots().Bind(ctx, doctorID, Day, at, appt.ID)
		if err != nil {
			return err
		}
		top, err := repos.Tokens().MaxForDay(ctx, doctorID, Day)
		if err != nil {
			return err
		}
		return repos.Tokens().Create(ctx, &model.Token{AppointmentID: appt.ID, DoctorID: doctorID, Date: Day, TokenNo: top + 1})
	})
	require.NoError(t, err)
	return appt, slot
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("slot create, exists and conflict", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)

		ok, err := store.Slots().Exists(ctx, fx.Doctor.ID, Day, "09:00")
		require.NoError(t, err)
		assert.False(t, ok)

		slot := &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}
		require.NoError(t, store.Slots().Create(ctx, slot))
		assert.NotZero(t, slot.ID)

		ok, err = store.Slots().Exists(ctx, fx.Doctor.ID, Day, "09:00")
		require.NoError(t, err)
		assert.True(t, ok)

		err = store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

		err = store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID + 1000, Date: Day, Time: "09:00"})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("available slots are unbound and ascending", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		for _, at := range []string{"11:30", "09:00", "10:15"} {
			require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: at}))
		}
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: "2031-05-15", Time: "08:00"}))

		times, err := store.Slots().ListAvailable(ctx, fx.Doctor.ID, Day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:15", "11:30"}, times)

		book(t, ctx, store, fx.Doctor.ID, "a@example.com", "10:15")

		times, err = store.Slots().ListAvailable(ctx, fx.Doctor.ID, Day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "11:30"}, times)

		slots, err := store.Slots().ListByDoctor(ctx, fx.Doctor.ID, Day)
		require.NoError(t, err)
		require.Len(t, slots, 4)
		assert.Equal(t, "09:00", slots[0].Time)
		assert.True(t, slots[1].Booked())
		assert.Equal(t, "2031-05-15", slots[3].Date)

		none, err := store.Slots().ListAvailable(ctx, fx.Doctor.ID, "2031-06-01")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("bind refuses missing and bound slots", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))
		appt, slot := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "09:00")
		require.NotNil(t, slot.AppointmentID)
		assert.Equal(t, appt.ID, *slot.AppointmentID)

		_, err := store.Slots().Bind(ctx, fx.Doctor.ID, Day, "09:00", appt.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))

		_, err = store.Slots().Bind(ctx, fx.Doctor.ID, Day, "13:00", appt.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))
	})

	t.Run("delete unbound only", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		free := &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}
		require.NoError(t, store.Slots().Create(ctx, free))
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "10:00"}))
		_, bound := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "10:00")

		err := store.Slots().DeleteUnbound(ctx, bound.ID, fx.Doctor.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

		err = store.Slots().DeleteUnbound(ctx, free.ID, fx.Doctor.ID+1000)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		require.NoError(t, store.Slots().DeleteUnbound(ctx, free.ID, fx.Doctor.ID))
		err = store.Slots().DeleteUnbound(ctx, free.ID, fx.Doctor.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		got, err := store.Slots().Get(ctx, bound.ID)
		require.NoError(t, err)
		assert.True(t, got.Booked())
	})

	t.Run("patient find or create never updates", func(t *testing.T) {
		store := newStore(t)
		first := patient("ada@example.com")
		created, err := store.Patients().FindOrCreate(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)

		second := patient("ada@example.com")
		second.Name = "Someone Else"
		second.ContactNo = "000"
		created, err = store.Patients().FindOrCreate(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Ada Lovelace", second.Name)

		stored, err := store.Patients().GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "555-0199", stored.ContactNo)
		assert.Equal(t, "1990-12-10", stored.DateOfBirth)

		_, err = store.Patients().GetByEmail(ctx, "nobody@example.com")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("tokens are unique per doctor day", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		for _, at := range []string{"09:00", "09:30"} {
			require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: at}))
		}
		first, _ := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "09:00")
		second, _ := book(t, ctx, store, fx.Doctor.ID, "b@example.com", "09:30")
		assert.NotEqual(t, first.ID, second.ID)

		top, err := store.Tokens().MaxForDay(ctx, fx.Doctor.ID, Day)
		require.NoError(t, err)
		assert.Equal(t, 2, top)

		top, err = store.Tokens().MaxForDay(ctx, fx.Doctor.ID, "2031-05-15")
		require.NoError(t, err)
		assert.Equal(t, 0, top)

		err = store.WithTx(ctx, func(repos repository.Repositories) error {
			p := patient("c@example.com")
			if _, err := repos.Patients().FindOrCreate(ctx, p); err != nil {
				return err
			}
			a := &model.Appointment{Reason: "dup", DoctorID: fx.Doctor.ID, PatientID: p.ID}
			if err := repos.Appointments().Create(ctx, a); err != nil {
				return err
			}
			return repos.Tokens().Create(ctx, &model.Token{AppointmentID: a.ID, DoctorID: fx.Doctor.ID, Date: Day, TokenNo: 2})
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(repos repository.Repositories) error {
			p := patient("ghost@example.com")
			if _, err := repos.Patients().FindOrCreate(ctx, p); err != nil {
				return err
			}
			a := &model.Appointment{Reason: "x", DoctorID: fx.Doctor.ID, PatientID: p.ID}
			if err := repos.Appointments().Create(ctx, a); err != nil {
				return err
			}
			if _, err := repos.Slots().Bind(ctx, fx.Doctor.ID, Day, "09:00", a.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.Patients().GetByEmail(ctx, "ghost@example.com")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		times, err := store.Slots().ListAvailable(ctx, fx.Doctor.ID, Day)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, times)
		n, err := store.Appointments().CountByDoctor(ctx, fx.Doctor.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("find by reference and list", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "10:00"}))
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))
		late, lateSlot := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "10:00")
		early, _ := book(t, ctx, store, fx.Doctor.ID, "b@example.com", "09:00")

		v, err := store.Appointments().FindByReference(ctx, reference.Tuple{
			PatientID: late.PatientID, DoctorID: fx.Doctor.ID, TokenNo: 1, SlotID: lateSlot.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, late.ID, v.AppointmentID)
		assert.Equal(t, "Gregory House", v.DoctorName)
		assert.Equal(t, "Cardiology", v.Specialization)
		assert.Equal(t, "10:00", v.Time)
		assert.Equal(t, Day, v.Date)
		assert.False(t, v.Confirmed)
		assert.Nil(t, v.ReceptionistName)

		_, err = store.Appointments().FindByReference(ctx, reference.Tuple{
			PatientID: late.PatientID, DoctorID: fx.Doctor.ID, TokenNo: 2, SlotID: lateSlot.ID,
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		all, err := store.Appointments().List(ctx, &model.AppointmentFilters{DoctorID: fx.Doctor.ID, Date: Day})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, early.ID, all[0].AppointmentID)

		changed, err := store.Appointments().MarkConfirmed(ctx, early.ID)
		require.NoError(t, err)
		assert.True(t, changed)
		all, err = store.Appointments().List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, late.ID, all[0].AppointmentID, "unconfirmed first")

		confirmed, err := store.Appointments().List(ctx, &model.AppointmentFilters{ConfirmedOnly: true})
		require.NoError(t, err)
		require.Len(t, confirmed, 1)
		assert.Equal(t, early.ID, confirmed[0].AppointmentID)
	})

	t.Run("completed and confirmed are independent", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))
		appt, _ := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "09:00")

		err := store.Appointments().SetCompleted(ctx, appt.ID, fx.Doctor.ID+1000, true)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		require.NoError(t, store.Appointments().SetCompleted(ctx, appt.ID, fx.Doctor.ID, true))
		got, err := store.Appointments().Get(ctx, appt.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.False(t, got.Confirmed)

		pending, err := store.Appointments().List(ctx, &model.AppointmentFilters{Status: model.VisitStatusPending})
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("confirmation upsert is idempotent", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)
		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))
		appt, slot := book(t, ctx, store, fx.Doctor.ID, "a@example.com", "09:00")

		at := time.Date(2031, 5, 13, 8, 0, 0, 0, time.UTC)
		c := &model.Confirmation{AppointmentID: appt.ID, ReceptionistID: fx.Receptionist.ID, ConfirmedAt: at}
		require.NoError(t, store.Confirmations().Upsert(ctx, c))
		again := &model.Confirmation{AppointmentID: appt.ID, ReceptionistID: fx.Receptionist.ID, ConfirmedAt: at.Add(time.Hour)}
		require.NoError(t, store.Confirmations().Upsert(ctx, again))

		got, err := store.Confirmations().Get(ctx, appt.ID)
		require.NoError(t, err)
		assert.True(t, got.Confirmed)
		assert.Equal(t, fx.Receptionist.ID, got.ReceptionistID)
		assert.True(t, at.Equal(got.ConfirmedAt))

		changed, err := store.Appointments().MarkConfirmed(ctx, appt.ID)
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = store.Appointments().MarkConfirmed(ctx, appt.ID)
		require.NoError(t, err)
		assert.False(t, changed, "already confirmed")
		v, err := store.Appointments().FindByReference(ctx, reference.Tuple{
			PatientID: appt.PatientID, DoctorID: fx.Doctor.ID, TokenNo: 1, SlotID: slot.ID,
		})
		require.NoError(t, err)
		assert.True(t, v.Confirmed)
		require.NotNil(t, v.ReceptionistName)
		assert.Equal(t, "Pam Beesly", *v.ReceptionistName)

		_, err = store.Appointments().MarkConfirmed(ctx, appt.ID+1000)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("users and staff", func(t *testing.T) {
		store := newStore(t)
		fx := Seed(t, ctx, store)

		err := store.Users().Create(ctx, &model.User{Username: "dr.house", PasswordHash: "y", Role: model.RoleDoctor})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

		staff, err := store.Users().ListStaff(ctx)
		require.NoError(t, err)
		require.Len(t, staff, 2)
		assert.Equal(t, model.RoleDoctor, staff[0].Role)
		assert.Equal(t, "dr.house", staff[0].Username)
		assert.Equal(t, "Cardiology", staff[0].Specialization)
		assert.Equal(t, model.RoleReceptionist, staff[1].Role)

		doctors, err := store.Doctors().ListBySpecialization(ctx, fx.Specialization.ID)
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, fx.Doctor.ID, doctors[0].ID)

		byUser, err := store.Doctors().GetByUserID(ctx, fx.Doctor.UserID)
		require.NoError(t, err)
		assert.Equal(t, "Cardiology", byUser.Specialization)

		require.NoError(t, store.Users().Delete(ctx, fx.Receptionist.UserID))
		_, err = store.Receptionists().Get(ctx, fx.Receptionist.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		require.NoError(t, store.Slots().Create(ctx, &model.Slot{DoctorID: fx.Doctor.ID, Date: Day, Time: "09:00"}))
		book(t, ctx, store, fx.Doctor.ID, "a@example.com", "09:00")
		err = store.Users().Delete(ctx, fx.Doctor.UserID)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		_, err = store.Doctors().Get(ctx, fx.Doctor.ID)
		assert.NoError(t, err)
	})

	t.Run("outbox lifecycle", func(t *testing.T) {
		store := newStore(t)
		first, err := model.NewOutboxEvent(model.EventAppointmentBooked, map[string]int64{"appointment_id": 1})
		require.NoError(t, err)
		second, err := model.NewOutboxEvent(model.EventAppointmentConfirmed, map[string]int64{"appointment_id": 1})
		require.NoError(t, err)
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, store.Outbox().Create(ctx, first))
		require.NoError(t, store.Outbox().Create(ctx, second))

		pending, err := store.Outbox().ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first.ID, pending[0].ID)
		assert.JSONEq(t, `{"appointment_id":1}`, string(pending[0].Payload))

		require.NoError(t, store.Outbox().MarkProcessed(ctx, first.ID))
		require.NoError(t, store.Outbox().MarkFailed(ctx, second.ID, "redis down"))

		pending, err = store.Outbox().ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		n, err := store.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "only the processed event is purged")
		assert.True(t, apperrors.Is(store.Outbox().MarkProcessed(ctx, first.ID), apperrors.ErrNotFound))
	})
}
