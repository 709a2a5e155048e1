package token

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/repository/storetest"
)

type world struct {
	store   *memory.Store
	doctors []int64
	seq     int
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	fx := storetest.Seed(t, ctx, store)

	user := &model.User{Username: "dr.wilson", PasswordHash: "x", Role: model.RoleDoctor}
	require.NoError(t, store.Users().Create(ctx, user))
	second := &model.Doctor{
		UserID:           user.ID,
		Name:             "James Wilson",
		Gender:           model.GenderMale,
		Email:            "wilson@example.com",
		ContactNo:        "555-0102",
		Address:          "Princeton",
		SpecializationID: fx.Specialization.ID,
	}
	require.NoError(t, store.Doctors().Create(ctx, second))

	return &world{store: store, doctors: []int64{fx.Doctor.ID, second.ID}}
}

// appointment stores a fresh appointment for doctorID and returns its id.
func (w *world) appointment(t *testing.T, repos repository.Repositories, doctorID int64) int64 {
	t.Helper()
	ctx := context.Background()
	w.seq++
	p := &model.Patient{
		Name:        "Patient",
		Email:       fmt.Sprintf("p%d@example.com", w.seq),
		ContactNo:   "555-0199",
		Address:     "London",
		DateOfBirth: "1990-12-10",
		Gender:      model.GenderOther,
	}
	_, err := repos.Patients().FindOrCreate(ctx, p)
	require.NoError(t, err)
	a := &model.Appointment{Reason: "checkup", DoctorID: doctorID, PatientID: p.ID}
	require.NoError(t, repos.Appointments().Create(ctx, a))
	return a.ID
}

func (w *world) issue(t *testing.T, a *Allocator, doctorID int64, date string) int {
	t.Helper()
	ctx := context.Background()
	var n int
	err := w.store.WithTx(ctx, func(repos repository.Repositories) error {
		tok, err := a.Issue(ctx, repos, w.appointment(t, repos, doctorID), doctorID, date)
		if err != nil {
			return err
		}
		n = tok.TokenNo
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestIssue_CountsPerDoctorPerDay(t *testing.T) {
	w := newWorld(t)
	a := NewAllocator()
	first, second := w.doctors[0], w.doctors[1]

	assert.Equal(t, 1, w.issue(t, a, first, "2031-05-14"))
	assert.Equal(t, 2, w.issue(t, a, first, "2031-05-14"))
	assert.Equal(t, 1, w.issue(t, a, second, "2031-05-14"), "another doctor starts at 1")
	assert.Equal(t, 1, w.issue(t, a, first, "2031-05-15"), "another day starts at 1")
	assert.Equal(t, 3, w.issue(t, a, first, "2031-05-14"))
}

func TestIssue_RolledBackTokenIsReused(t *testing.T) {
	w := newWorld(t)
	a := NewAllocator()
	ctx := context.Background()
	doctor := w.doctors[0]

	w.issue(t, a, doctor, "2031-05-14")

	boom := errors.New("booking failed later")
	err := w.store.WithTx(ctx, func(repos repository.Repositories) error {
		if _, err := a.Issue(ctx, repos, w.appointment(t, repos, doctor), doctor, "2031-05-14"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, w.issue(t, a, doctor, "2031-05-14"), "no gap after a rollback")
}

func TestNext_DoesNotReserve(t *testing.T) {
	w := newWorld(t)
	a := NewAllocator()
	ctx := context.Background()

	err := w.store.WithTx(ctx, func(repos repository.Repositories) error {
		for i := 0; i < 2; i++ {
			n, err := a.Next(ctx, repos, w.doctors[0], "2031-05-14")
			if err != nil {
				return err
			}
			assert.Equal(t, 1, n)
		}
		return nil
	})
	require.NoError(t, err)
}
