// Package token issues per-doctor, per-day queue numbers.
package token

import (
	"context"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

// Allocator hands out tokens 1, 2, 3... for each (doctor, date). It holds no
// state; serialization comes from the store's day lock, which lasts until the
// caller's transaction ends.
type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Lock takes the day lock early, before any other row a booking touches, so
// every booking acquires locks in the same order.
func (a *Allocator) Lock(ctx context.Context, repos repository.Repositories, doctorID int64, date string) error {
	return repos.Tokens().LockDay(ctx, doctorID, date)
}

// Next returns max(existing)+1, or 1 for the first booking of the day.
func (a *Allocator) Next(ctx context.Context, repos repository.Repositories, doctorID int64, date string) (int, error) {
	if err := a.Lock(ctx, repos, doctorID, date); err != nil {
		return 0, err
	}
	n, err := repos.Tokens().MaxForDay(ctx, doctorID, date)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// Issue allocates the next token and stores it against the appointment.
func (a *Allocator) Issue(ctx context.Context, repos repository.Repositories, appointmentID, doctorID int64, date string) (*model.Token, error) {
	n, err := a.Next(ctx, repos, doctorID, date)
	if err != nil {
		return nil, err
	}
	tok := &model.Token{
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		Date:          date,
		TokenNo:       n,
	}
	if err := repos.Tokens().Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}
