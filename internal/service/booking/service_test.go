package booking

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
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/storetest"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	staff   *storetest.Fixture
	metrics *metrics.Metrics
	svc     *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.New(prometheus.NewRegistry(), "test")
	return &fixture{
		ctx:     ctx,
		store:   store,
		staff:   storetest.Seed(t, ctx, store),
		metrics: m,
		svc:     NewService(store, token.NewAllocator(), m, logger.Nop()),
	}
}

func (f *fixture) slots(t *testing.T, times ...string) {
	t.Helper()
	for _, at := range times {
		require.NoError(t, f.store.Slots().Create(f.ctx, &model.Slot{DoctorID: f.staff.Doctor.ID, Date: storetest.Day, Time: at}))
	}
}

func request(doctorID int64, email, at string) *model.BookingRequest {
	return &model.BookingRequest{
		Name:        "Ada Lovelace",
		Email:       email,
		ContactNo:   "555-0199",
		Address:     "London",
		DateOfBirth: "1990-12-10",
		Gender:      model.GenderFemale,
		DoctorID:    doctorID,
		Date:        storetest.Day,
		Time:        at,
		Reason:      "chest pain",
	}
}

func TestBook_FirstBookingOfTheDay(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	res, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, "ada@example.com", "09:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.TokenNo)
	assert.Equal(t, "REF-0001-0001-001-0001", res.Reference)

	appt, err := f.store.Appointments().Get(f.ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.False(t, appt.Confirmed)
	assert.False(t, appt.Completed)
	assert.Equal(t, "chest pain", appt.Reason)

	slot, err := f.store.Slots().Get(f.ctx, res.SlotID)
	require.NoError(t, err)
	require.True(t, slot.Booked())
	assert.Equal(t, res.AppointmentID, *slot.AppointmentID)

	times, err := f.store.Slots().ListAvailable(f.ctx, f.staff.Doctor.ID, storetest.Day)
	require.NoError(t, err)
	assert.Empty(t, times)

	pending, err := f.store.Outbox().ListPending(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventAppointmentBooked, pending[0].EventType)
	assert.Contains(t, string(pending[0].Payload), res.Reference)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Bookings.WithLabelValues("success")))
}

func TestBook_TokensIncrementPerDay(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00", "09:30", "10:00")

	for i, at := range []string{"10:00", "09:00", "09:30"} {
		res, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, fmt.Sprintf("p%d@example.com", i), at))
		require.NoError(t, err)
		assert.Equal(t, i+1, res.TokenNo, "tokens follow booking order, not slot time")
	}
}

func TestBook_ReusesPatientByEmail(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00", "09:30")

	first, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, "ada@example.com", "09:00"))
	require.NoError(t, err)

	again := request(f.staff.Doctor.ID, "  ada@example.com ", "09:30")
	again.Name = "Augusta Ada King"
	again.Address = "Marylebone"
	second, err := f.svc.Book(f.ctx, again)
	require.NoError(t, err)

	assert.Equal(t, first.PatientID, second.PatientID)
	p, err := f.store.Patients().Get(f.ctx, first.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, "London", p.Address)
}

func TestBook_SlotUnavailable(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	_, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, "ada@example.com", "09:00"))
	require.NoError(t, err)

	cases := map[string]*model.BookingRequest{
		"already booked": request(f.staff.Doctor.ID, "bob@example.com", "09:00"),
		"never created":  request(f.staff.Doctor.ID, "bob@example.com", "11:00"),
		"unknown doctor": request(9999, "bob@example.com", "09:00"),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Book(f.ctx, req)
			assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable), "got %v", err)
		})
	}

	// Nothing from the failed attempts survives.
	_, err = f.store.Patients().GetByEmail(f.ctx, "bob@example.com")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	n, err := f.store.Appointments().CountByDoctor(f.ctx, f.staff.Doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Bookings.WithLabelValues("slot_unavailable")))
}

func TestBook_InvalidInput(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	mutate := map[string]func(r *model.BookingRequest){
		"bad email":      func(r *model.BookingRequest) { r.Email = "not-an-email" },
		"missing name":   func(r *model.BookingRequest) { r.Name = "" },
		"bad gender":     func(r *model.BookingRequest) { r.Gender = "Robot" },
		"bad date":       func(r *model.BookingRequest) { r.Date = "14/05/2031" },
		"bad time":       func(r *model.BookingRequest) { r.Time = "9am" },
		"bad birth date": func(r *model.BookingRequest) { r.DateOfBirth = "1990-13-01" },
		"born after":     func(r *model.BookingRequest) { r.DateOfBirth = "2032-01-01" },
		"missing doctor": func(r *model.BookingRequest) { r.DoctorID = 0 },
		"missing reason": func(r *model.BookingRequest) { r.Reason = "" },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			req := request(f.staff.Doctor.ID, "ada@example.com", "09:00")
			fn(req)
			_, err := f.svc.Book(f.ctx, req)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}

	_, err := f.svc.Book(f.ctx, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	times, err := f.store.Slots().ListAvailable(f.ctx, f.staff.Doctor.ID, storetest.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, times)
}

func TestBook_NilRequest(t *testing.T) {
	f := setup(t)

	var (
		res *model.BookingResult
		err error
	)
	require.NotPanics(t, func() { res, err = f.svc.Book(f.ctx, nil) })
	assert.Nil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Bookings.WithLabelValues("invalid_input")))
}

func TestBook_AcceptsSecondsInTime(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	res, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, "ada@example.com", "09:00:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.TokenNo)
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(f.ctx, request(f.staff.Doctor.ID, fmt.Sprintf("p%d@example.com", i), "09:00"))
		}(i)
	}
	wg.Wait()

	var ok, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.Is(err, apperrors.ErrSlotUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, unavailable)
}

func TestBook_ConcurrentTokensAreDense(t *testing.T) {
	f := setup(t)

	const n = 25
	for i := 0; i < n; i++ {
		f.slots(t, fmt.Sprintf("%02d:%02d", 8+i/4, (i%4)*15))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = map[int]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := fmt.Sprintf("%02d:%02d", 8+i/4, (i%4)*15)
			res, err := f.svc.Book(f.ctx, request(f.staff.Doctor.ID, fmt.Sprintf("p%d@example.com", i), at))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			tokens[res.TokenNo] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, tokens, n)
	for i := 1; i <= n; i++ {
		assert.True(t, tokens[i], "token %d missing", i)
	}
}

func TestBook_ReferenceOverflowRollsBack(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	// Fill the day up to the largest token a reference can carry.
	err := f.store.WithTx(f.ctx, func(repos repository.Repositories) error {
		p := &model.Patient{Name: "Filler", Email: "filler@example.com", DateOfBirth: "1980-01-01", Gender: model.GenderOther}
		if _, err := repos.Patients().FindOrCreate(f.ctx, p); err != nil {
			return err
		}
		for i := 1; i <= 999; i++ {
			a := &model.Appointment{Reason: "filler", DoctorID: f.staff.Doctor.ID, PatientID: p.ID}
			if err := repos.Appointments().Create(f.ctx, a); err != nil {
				return err
			}
			tok := &model.Token{AppointmentID: a.ID, DoctorID: f.staff.Doctor.ID, Date: storetest.Day, TokenNo: i}
			if err := repos.Tokens().Create(f.ctx, tok); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_, err = f.svc.Book(f.ctx, request(f.staff.Doctor.ID, "late@example.com", "09:00"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrReferenceOverflow), "got %v", err)

	times, err := f.store.Slots().ListAvailable(f.ctx, f.staff.Doctor.ID, storetest.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, times)

	_, err = f.store.Patients().GetByEmail(f.ctx, "late@example.com")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	top, err := f.store.Tokens().MaxForDay(f.ctx, f.staff.Doctor.ID, storetest.Day)
	require.NoError(t, err)
	assert.Equal(t, 999, top)
}

func TestBook_CanceledContext(t *testing.T) {
	f := setup(t)
	f.slots(t, "09:00")

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	_, err := f.svc.Book(ctx, request(f.staff.Doctor.ID, "ada@example.com", "09:00"))
	require.Error(t, err)

	times, err := f.store.Slots().ListAvailable(f.ctx, f.staff.Doctor.ID, storetest.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, times)
}
