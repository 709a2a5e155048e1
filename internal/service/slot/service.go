package slot

import (
	"context"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type Options struct {
	// Location decides which calendar day is "today".
	Location       *time.Location
	AllowPastDates bool
	Now            func() time.Time
}

type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *logger.Logger
	opts    Options
}

func NewService(store repository.Store, m *metrics.Metrics, log *logger.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, metrics: m, logger: log, opts: opts}
}

func (s *Service) today() string {
	return s.opts.Now().In(s.opts.Location).Format(model.DateLayout)
}

func (s *Service) checkDate(raw string) (string, error) {
	date, err := model.NormalizeDate(raw)
	if err != nil {
		return "", err
	}
	if !s.opts.AllowPastDates && date < s.today() {
		return "", apperrors.InvalidInput("date is in the past", nil)
	}
	return date, nil
}

// IsAvailable reports whether no slot, bound or not, exists for the triple.
func (s *Service) IsAvailable(ctx context.Context, doctorID int64, date, at string) (bool, error) {
	date, err := model.NormalizeDate(date)
	if err != nil {
		return false, err
	}
	at, err = model.NormalizeTime(at)
	if err != nil {
		return false, err
	}
	exists, err := s.store.Slots().Exists(ctx, doctorID, date, at)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// CreateSlot publishes one slot for the acting doctor.
func (s *Service) CreateSlot(ctx context.Context, actor *model.Actor, req *model.CreateSlotRequest) (*model.Slot, error) {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return nil, err
	}
	date, err := s.checkDate(req.Date)
	if err != nil {
		return nil, err
	}
	at, err := model.NormalizeTime(req.Time)
	if err != nil {
		return nil, err
	}

	slot := &model.Slot{DoctorID: actor.ProfileID, Date: date, Time: at}
	if err := s.store.Slots().Create(ctx, slot); err != nil {
		return nil, err
	}
	s.metrics.SlotsCreated.Inc()
	s.logger.Info("slot created", "doctor_id", slot.DoctorID, "slot_id", slot.ID, "date", date, "time", at)
	return slot, nil
}

// CreateSlots publishes several times on one date. Times that already exist
// are skipped and reported, not treated as errors.
func (s *Service) CreateSlots(ctx context.Context, actor *model.Actor, req *model.CreateSlotsRequest) (*model.CreateSlotsResult, error) {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return nil, err
	}
	date, err := s.checkDate(req.Date)
	if err != nil {
		return nil, err
	}
	if len(req.Times) == 0 {
		return nil, apperrors.InvalidInput("at least one time is required", nil)
	}

	times := make([]string, 0, len(req.Times))
	for _, raw := range req.Times {
		at, err := model.NormalizeTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, at)
	}

	result := &model.CreateSlotsResult{Created: []string{}, Skipped: []string{}}
	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		for _, at := range times {
			slot := &model.Slot{DoctorID: actor.ProfileID, Date: date, Time: at}
			err := repos.Slots().Create(ctx, slot)
			switch {
			case err == nil:
				result.Created = append(result.Created, at)
			case apperrors.Is(err, apperrors.ErrConflict):
				result.Skipped = append(result.Skipped, at)
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SlotsCreated.Add(float64(len(result.Created)))
	s.logger.Info("slots created",
		"doctor_id", actor.ProfileID,
		"date", date,
		"created", len(result.Created),
		"skipped", len(result.Skipped))
	return result, nil
}

// ListAvailable returns the doctor's unbooked times on date, ascending.
func (s *Service) ListAvailable(ctx context.Context, doctorID int64, date string) ([]string, error) {
	date, err := model.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	return s.store.Slots().ListAvailable(ctx, doctorID, date)
}

// ListUpcoming returns every slot of the acting doctor from today on.
func (s *Service) ListUpcoming(ctx context.Context, actor *model.Actor) ([]*model.Slot, error) {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return nil, err
	}
	return s.store.Slots().ListByDoctor(ctx, actor.ProfileID, s.today())
}

// DeleteSlot removes one of the acting doctor's slots unless it is booked.
func (s *Service) DeleteSlot(ctx context.Context, actor *model.Actor, slotID int64) error {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return err
	}
	if err := s.store.Slots().DeleteUnbound(ctx, slotID, actor.ProfileID); err != nil {
		return err
	}
	s.logger.Info("slot deleted", "doctor_id", actor.ProfileID, "slot_id", slotID)
	return nil
}
