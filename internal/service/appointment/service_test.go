package appointment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/storetest"
	"github.com/jwalitptl/hospital-api/internal/service/booking"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type fixture struct {
	ctx          context.Context
	store        *memory.Store
	staff        *storetest.Fixture
	metrics      *metrics.Metrics
	svc          *Service
	booking      *booking.Service
	doctor       *model.Actor
	receptionist *model.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	staff := storetest.Seed(t, ctx, store)
	m := metrics.New(prometheus.NewRegistry(), "test")
	return &fixture{
		ctx:          ctx,
		store:        store,
		staff:        staff,
		metrics:      m,
		svc:          NewService(store, m, logger.Nop()),
		booking:      booking.NewService(store, token.NewAllocator(), m, logger.Nop()),
		doctor:       &model.Actor{UserID: staff.Doctor.UserID, Role: model.RoleDoctor, ProfileID: staff.Doctor.ID},
		receptionist: &model.Actor{UserID: staff.Receptionist.UserID, Role: model.RoleReceptionist, ProfileID: staff.Receptionist.ID},
	}
}

func (f *fixture) book(t *testing.T, email, date, at string) *model.BookingResult {
	t.Helper()
	require.NoError(t, f.store.Slots().Create(f.ctx, &model.Slot{DoctorID: f.staff.Doctor.ID, Date: date, Time: at}))
	res, err := f.booking.Book(f.ctx, &model.BookingRequest{
		Name:        "Patient " + email,
		Email:       email,
		ContactNo:   "555-0199",
		Address:     "London",
		DateOfBirth: "1990-12-10",
		Gender:      model.GenderOther,
		DoctorID:    f.staff.Doctor.ID,
		Date:        date,
		Time:        at,
		Reason:      "checkup",
	})
	require.NoError(t, err)
	return res
}

func TestLookup(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")
	require.Equal(t, "REF-0001-0001-001-0001", res.Reference)

	view, err := f.svc.Lookup(f.ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, view.Reference)
	assert.Equal(t, res.AppointmentID, view.AppointmentID)
	assert.Equal(t, "Gregory House", view.DoctorName)
	assert.Equal(t, "Cardiology", view.Specialization)
	assert.Equal(t, storetest.Day, view.Date)
	assert.Equal(t, "09:00", view.Time)
	assert.Equal(t, 1, view.TokenNo)
	assert.False(t, view.Confirmed)
	assert.Nil(t, view.ReceptionistName)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Lookups.WithLabelValues("found")))
}

func TestLookup_MalformedAndUnknownAreDistinct(t *testing.T) {
	f := setup(t)
	f.book(t, "ada@example.com", storetest.Day, "09:00")

	for _, ref := range []string{"REF-0001", "garbage"} {
		_, err := f.svc.Lookup(f.ctx, ref)
		require.Error(t, err, ref)
		assert.Equal(t, apperrors.ErrMalformedReference, apperrors.CodeOf(err), ref)
		assert.False(t, apperrors.Is(err, apperrors.ErrNotFound), ref)
	}
	for _, ref := range []string{"REF-0001-0001-002-0001", "REF-0002-0001-001-0001"} {
		_, err := f.svc.Lookup(f.ctx, ref)
		require.Error(t, err, ref)
		assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err), ref)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Lookups.WithLabelValues("malformed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Lookups.WithLabelValues("not_found")))
}

func TestConfirm(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")

	c, err := f.svc.Confirm(f.ctx, f.receptionist, res.AppointmentID)
	require.NoError(t, err)
	assert.True(t, c.Confirmed)
	assert.Equal(t, f.staff.Receptionist.ID, c.ReceptionistID)

	view, err := f.svc.Lookup(f.ctx, res.Reference)
	require.NoError(t, err)
	assert.True(t, view.Confirmed)
	require.NotNil(t, view.ReceptionistName)
	assert.Equal(t, "Pam Beesly", *view.ReceptionistName)

	// Second confirmation keeps the first record and emits nothing new.
	again, err := f.svc.Confirm(f.ctx, f.receptionist, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, c.ConfirmedAt, again.ConfirmedAt)

	assert.Equal(t, 1, f.confirmedEvents(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Confirmations))
}

func (f *fixture) confirmedEvents(t *testing.T) int {
	t.Helper()
	pending, err := f.store.Outbox().ListPending(f.ctx, 100)
	require.NoError(t, err)
	var n int
	for _, e := range pending {
		if e.EventType == model.EventAppointmentConfirmed {
			n++
		}
	}
	return n
}

func TestConfirm_Concurrent(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(f.ctx, f.receptionist, res.AppointmentID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := f.store.Confirmations().Get(f.ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.True(t, c.Confirmed)
	assert.Equal(t, 1, f.confirmedEvents(t), "one event however many receptionists race")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Confirmations))
}

func TestConfirm_AlreadyConfirmedEmitsNothing(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")

	changed, err := f.store.Appointments().MarkConfirmed(f.ctx, res.AppointmentID)
	require.NoError(t, err)
	require.True(t, changed)

	c, err := f.svc.Confirm(f.ctx, f.receptionist, res.AppointmentID)
	require.NoError(t, err)
	assert.True(t, c.Confirmed)
	assert.Zero(t, f.confirmedEvents(t))
	assert.Zero(t, testutil.ToFloat64(f.metrics.Confirmations))
}

func TestConfirm_Errors(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")

	_, err := f.svc.Confirm(f.ctx, f.receptionist, 999)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.Confirm(f.ctx, f.doctor, res.AppointmentID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.Confirm(f.ctx, nil, res.AppointmentID)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestListForReception_UnconfirmedFirst(t *testing.T) {
	f := setup(t)
	first := f.book(t, "a@example.com", storetest.Day, "09:00")
	f.book(t, "b@example.com", storetest.Day, "10:00")
	f.book(t, "c@example.com", "2031-05-15", "08:00")

	_, err := f.svc.Confirm(f.ctx, f.receptionist, first.AppointmentID)
	require.NoError(t, err)

	all, err := f.svc.ListForReception(f.ctx, f.receptionist, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "10:00", all[0].Time)
	assert.Equal(t, "08:00", all[1].Time)
	assert.Equal(t, first.AppointmentID, all[2].AppointmentID)
	for _, v := range all {
		assert.NotEmpty(t, v.Reference)
	}

	day, err := f.svc.ListForReception(f.ctx, f.receptionist, "2031-05-15")
	require.NoError(t, err)
	assert.Len(t, day, 1)

	_, err = f.svc.ListForReception(f.ctx, f.doctor, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = f.svc.ListForReception(f.ctx, f.receptionist, "15/05/2031")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestDoctorVisits(t *testing.T) {
	f := setup(t)
	var ids []int64
	for i, at := range []string{"09:00", "09:30", "10:00"} {
		res := f.book(t, fmt.Sprintf("p%d@example.com", i), storetest.Day, at)
		ids = append(ids, res.AppointmentID)
	}

	// Only confirmed appointments reach the doctor.
	visits, err := f.svc.ListDoctorAppointments(f.ctx, f.doctor, "", "")
	require.NoError(t, err)
	assert.Empty(t, visits)

	for _, id := range ids[:2] {
		_, err := f.svc.Confirm(f.ctx, f.receptionist, id)
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.SetCompleted(f.ctx, f.doctor, ids[0], true))

	visits, err = f.svc.ListDoctorAppointments(f.ctx, f.doctor, storetest.Day, model.VisitStatusAll)
	require.NoError(t, err)
	assert.Len(t, visits, 2)

	visits, err = f.svc.ListDoctorAppointments(f.ctx, f.doctor, "", model.VisitStatusPending)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, ids[1], visits[0].AppointmentID)

	visits, err = f.svc.ListDoctorAppointments(f.ctx, f.doctor, "", model.VisitStatusCompleted)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.True(t, visits[0].Completed)
	assert.True(t, visits[0].Confirmed)

	_, err = f.svc.ListDoctorAppointments(f.ctx, f.doctor, "", "cancelled")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestSetCompleted_IndependentOfConfirmation(t *testing.T) {
	f := setup(t)
	res := f.book(t, "ada@example.com", storetest.Day, "09:00")

	require.NoError(t, f.svc.SetCompleted(f.ctx, f.doctor, res.AppointmentID, true))
	appt, err := f.store.Appointments().Get(f.ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.True(t, appt.Completed)
	assert.False(t, appt.Confirmed)

	require.NoError(t, f.svc.SetCompleted(f.ctx, f.doctor, res.AppointmentID, false))
	appt, err = f.store.Appointments().Get(f.ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.False(t, appt.Completed)

	other := &model.Actor{UserID: 99, Role: model.RoleDoctor, ProfileID: 42}
	err = f.svc.SetCompleted(f.ctx, other, res.AppointmentID, true)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
