package appointment

import (
	"context"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/reference"
)

type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(store repository.Store, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{store: store, metrics: m, logger: log}
}

type confirmedEvent struct {
	AppointmentID  int64 `json:"appointment_id"`
	ReceptionistID int64 `json:"receptionist_id"`
	DoctorID       int64 `json:"doctor_id"`
	PatientID      int64 `json:"patient_id"`
}

// Lookup resolves a booking reference to its appointment. It fails with
// ErrMalformedReference when ref does not decode and ErrNotFound when it
// decodes but matches nothing.
func (s *Service) Lookup(ctx context.Context, ref string) (*model.AppointmentView, error) {
	tuple, err := reference.Decode(ref)
	if err != nil {
		s.metrics.Lookups.WithLabelValues("malformed").Inc()
		s.logger.Debug("reference lookup rejected", "reason", "malformed")
		return nil, err
	}

	view, err := s.store.Appointments().FindByReference(ctx, tuple)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.metrics.Lookups.WithLabelValues("not_found").Inc()
			s.logger.Debug("reference lookup rejected", "reason", "not_found")
			return nil, err
		}
		s.metrics.Lookups.WithLabelValues("error").Inc()
		return nil, err
	}

	view.Reference = reference.Format(tuple)
	s.metrics.Lookups.WithLabelValues("found").Inc()
	return view, nil
}

// Confirm marks the appointment confirmed on behalf of the acting
// receptionist. Confirming twice is not an error; the first confirmation's
// receptionist and time are kept.
func (s *Service) Confirm(ctx context.Context, actor *model.Actor, appointmentID int64) (*model.Confirmation, error) {
	if err := actor.Require(model.RoleReceptionist); err != nil {
		return nil, err
	}

	var (
		confirmation *model.Confirmation
		changed      bool
	)
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		// The conditional update decides which of several concurrent
		// confirmers publishes the event.
		var err error
		changed, err = repos.Appointments().MarkConfirmed(ctx, appointmentID)
		if err != nil {
			return err
		}
		confirmation = &model.Confirmation{AppointmentID: appointmentID, ReceptionistID: actor.ProfileID}
		if err := repos.Confirmations().Upsert(ctx, confirmation); err != nil {
			return err
		}
		if !changed {
			return nil
		}

		appt, err := repos.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return err
		}
		event, err := model.NewOutboxEvent(model.EventAppointmentConfirmed, confirmedEvent{
			AppointmentID:  appointmentID,
			ReceptionistID: actor.ProfileID,
			DoctorID:       appt.DoctorID,
			PatientID:      appt.PatientID,
		})
		if err != nil {
			return apperrors.StoreFailure("encode confirmation event", err)
		}
		return repos.Outbox().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.Confirmations.Inc()
		s.logger.Info("appointment confirmed", "appointment_id", appointmentID, "receptionist_id", actor.ProfileID)
	}
	return confirmation, nil
}

// ListForReception returns every appointment, optionally on one date,
// unconfirmed first.
func (s *Service) ListForReception(ctx context.Context, actor *model.Actor, date string) ([]*model.AppointmentView, error) {
	if err := actor.Require(model.RoleReceptionist, model.RoleAdmin); err != nil {
		return nil, err
	}
	filters := &model.AppointmentFilters{}
	if date != "" {
		d, err := model.NormalizeDate(date)
		if err != nil {
			return nil, err
		}
		filters.Date = d
	}
	return s.list(ctx, filters)
}

// ListDoctorAppointments returns the acting doctor's confirmed appointments.
// Unconfirmed bookings stay with reception until confirmed.
func (s *Service) ListDoctorAppointments(ctx context.Context, actor *model.Actor, date string, status model.VisitStatus) ([]*model.AppointmentView, error) {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return nil, err
	}
	switch status {
	case "":
		status = model.VisitStatusAll
	case model.VisitStatusAll, model.VisitStatusPending, model.VisitStatusCompleted:
	default:
		return nil, apperrors.InvalidInput("status must be one of all, pending, completed", nil)
	}

	filters := &model.AppointmentFilters{
		DoctorID:      actor.ProfileID,
		Status:        status,
		ConfirmedOnly: true,
	}
	if date != "" {
		d, err := model.NormalizeDate(date)
		if err != nil {
			return nil, err
		}
		filters.Date = d
	}
	return s.list(ctx, filters)
}

// SetCompleted records whether the visit took place. It never touches the
// confirmation state.
func (s *Service) SetCompleted(ctx context.Context, actor *model.Actor, appointmentID int64, completed bool) error {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return err
	}
	if err := s.store.Appointments().SetCompleted(ctx, appointmentID, actor.ProfileID, completed); err != nil {
		return err
	}
	s.logger.Info("visit status updated", "appointment_id", appointmentID, "doctor_id", actor.ProfileID, "completed", completed)
	return nil
}

func (s *Service) list(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentView, error) {
	views, err := s.store.Appointments().List(ctx, filters)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		v.Reference = reference.Format(reference.Tuple{
			PatientID: v.PatientID,
			DoctorID:  v.DoctorID,
			TokenNo:   v.TokenNo,
			SlotID:    v.SlotID,
		})
	}
	return views, nil
}
