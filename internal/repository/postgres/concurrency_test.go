package postgres

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/storetest"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/booking"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

const racers = 8

type raceFixture struct {
	ctx          context.Context
	store        *Store
	staff        *storetest.Fixture
	metrics      *metrics.Metrics
	booking      *booking.Service
	appointments *appointment.Service
}

func newRaceFixture(t *testing.T, driver string) *raceFixture {
	t.Helper()
	db := testDB(t, driver)
	truncate(t, db)
	db.SetMaxOpenConns(racers + 2)

	ctx := context.Background()
	store := NewStore(db)
	m := metrics.New(prometheus.NewRegistry(), "test")
	return &raceFixture{
		ctx:          ctx,
		store:        store,
		staff:        storetest.Seed(t, ctx, store),
		metrics:      m,
		booking:      booking.NewService(store, token.NewAllocator(), m, logger.Nop()),
		appointments: appointment.NewService(store, m, logger.Nop()),
	}
}

func (f *raceFixture) request(i int, at string) *model.BookingRequest {
	return &model.BookingRequest{
		Name:        fmt.Sprintf("Patient %d", i),
		Email:       fmt.Sprintf("patient%d@example.com", i),
		ContactNo:   "555-0199",
		Address:     "London",
		DateOfBirth: "1990-12-10",
		Gender:      model.GenderOther,
		DoctorID:    f.staff.Doctor.ID,
		Date:        storetest.Day,
		Time:        at,
		Reason:      "checkup",
	}
}

// bookAll fires one Book per request at the same time and returns the
// results and errors by index.
func (f *raceFixture) bookAll(reqs []*model.BookingRequest) ([]*model.BookingResult, []error) {
	results := make([]*model.BookingResult, len(reqs))
	errs := make([]error, len(reqs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *model.BookingRequest) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.booking.Book(f.ctx, req)
		}(i, req)
	}
	close(start)
	wg.Wait()
	return results, errs
}

func testConcurrentBooking(t *testing.T, driver string) {
	t.Run("distinct slots get tokens 1 to n", func(t *testing.T) {
		f := newRaceFixture(t, driver)
		reqs := make([]*model.BookingRequest, racers)
		for i := range reqs {
			at := fmt.Sprintf("%02d:00", 8+i)
			require.NoError(t, f.store.Slots().Create(f.ctx, &model.Slot{DoctorID: f.staff.Doctor.ID, Date: storetest.Day, Time: at}))
			reqs[i] = f.request(i, at)
		}

		results, errs := f.bookAll(reqs)
		tokens := make([]int, 0, racers)
		slots := make(map[int64]bool)
		for i := range reqs {
			require.NoError(t, errs[i], "booking %d", i)
			tokens = append(tokens, results[i].TokenNo)
			slots[results[i].SlotID] = true
		}
		sort.Ints(tokens)
		for i, tok := range tokens {
			assert.Equal(t, i+1, tok)
		}
		assert.Len(t, slots, racers)
		assert.Equal(t, float64(racers), testutil.ToFloat64(f.metrics.Bookings.WithLabelValues("success")))

		available, err := f.store.Slots().ListAvailable(f.ctx, f.staff.Doctor.ID, storetest.Day)
		require.NoError(t, err)
		assert.Empty(t, available)
	})

	t.Run("one shared slot has one winner", func(t *testing.T) {
		f := newRaceFixture(t, driver)
		require.NoError(t, f.store.Slots().Create(f.ctx, &model.Slot{DoctorID: f.staff.Doctor.ID, Date: storetest.Day, Time: "09:00"}))
		reqs := make([]*model.BookingRequest, racers)
		for i := range reqs {
			reqs[i] = f.request(i, "09:00")
		}

		results, errs := f.bookAll(reqs)
		var winners, unavailable int
		for i := range reqs {
			switch {
			case errs[i] == nil:
				winners++
				assert.Equal(t, 1, results[i].TokenNo)
			case apperrors.Is(errs[i], apperrors.ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("booking %d: unexpected error %v", i, errs[i])
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, racers-1, unavailable)

		all, err := f.store.Appointments().List(f.ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1, "losing bookings roll back their appointment rows")
	})

	t.Run("concurrent confirms publish one event", func(t *testing.T) {
		f := newRaceFixture(t, driver)
		require.NoError(t, f.store.Slots().Create(f.ctx, &model.Slot{DoctorID: f.staff.Doctor.ID, Date: storetest.Day, Time: "09:00"}))
		res, err := f.booking.Book(f.ctx, f.request(0, "09:00"))
		require.NoError(t, err)

		actor := &model.Actor{UserID: f.staff.Receptionist.UserID, Role: model.RoleReceptionist, ProfileID: f.staff.Receptionist.ID}
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.appointments.Confirm(f.ctx, actor, res.AppointmentID)
				assert.NoError(t, err)
			}()
		}
		close(start)
		wg.Wait()

		pending, err := f.store.Outbox().ListPending(f.ctx, 100)
		require.NoError(t, err)
		var confirmed int
		for _, e := range pending {
			if e.EventType == model.EventAppointmentConfirmed {
				confirmed++
			}
		}
		assert.Equal(t, 1, confirmed)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Confirmations))
	})
}

func TestConcurrentBooking_LibPQ(t *testing.T) {
	testConcurrentBooking(t, "postgres")
}

func TestConcurrentBooking_PGX(t *testing.T) {
	testConcurrentBooking(t, "pgx")
}
