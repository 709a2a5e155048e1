package booking

import (
	"context"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/token"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/reference"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type Service struct {
	store    repository.Store
	tokens   *token.Allocator
	validate validator.Validator
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewService(store repository.Store, tokens *token.Allocator, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		validate: validator.New(),
		metrics:  m,
		logger:   log,
	}
}

type bookedEvent struct {
	AppointmentID int64  `json:"appointment_id"`
	PatientID     int64  `json:"patient_id"`
	DoctorID      int64  `json:"doctor_id"`
	SlotID        int64  `json:"slot_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	TokenNo       int    `json:"token_no"`
	Reference     string `json:"reference"`
}

// Book runs the whole booking in one transaction: find or create the patient
// by email, create a pending appointment, bind the requested slot, issue the
// day's next token and encode the reference. Any failure rolls all of it back.
func (s *Service) Book(ctx context.Context, req *model.BookingRequest) (*model.BookingResult, error) {
	var doctorID int64
	if req != nil {
		doctorID = req.DoctorID
	}

	result, err := s.book(ctx, req)
	if err != nil {
		outcome := apperrors.CodeOf(err).String()
		s.metrics.Bookings.WithLabelValues(outcome).Inc()
		if apperrors.CodeOf(err) == apperrors.ErrStoreFailure {
			s.logger.Error(err, "booking rolled back", "doctor_id", doctorID)
		} else {
			s.logger.Info("booking rejected", "doctor_id", doctorID, "reason", outcome)
		}
		return nil, err
	}

	s.metrics.Bookings.WithLabelValues("success").Inc()
	s.logger.Info("booking committed",
		"appointment_id", result.AppointmentID,
		"doctor_id", doctorID,
		"slot_id", result.SlotID,
		"token_no", result.TokenNo)
	return result, nil
}

func (s *Service) book(ctx context.Context, req *model.BookingRequest) (*model.BookingResult, error) {
	date, at, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	var result *model.BookingResult
	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		if err := s.tokens.Lock(ctx, repos, req.DoctorID, date); err != nil {
			return err
		}

		if _, err := repos.Doctors().Get(ctx, req.DoctorID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.SlotUnavailable("the requested slot is not available")
			}
			return err
		}

		patient := &model.Patient{
			Name:        strings.TrimSpace(req.Name),
			Email:       strings.TrimSpace(req.Email),
			ContactNo:   strings.TrimSpace(req.ContactNo),
			Address:     strings.TrimSpace(req.Address),
			DateOfBirth: req.DateOfBirth,
			Gender:      req.Gender,
		}
		if _, err := repos.Patients().FindOrCreate(ctx, patient); err != nil {
			return err
		}

		appointment := &model.Appointment{
			Reason:    strings.TrimSpace(req.Reason),
			DoctorID:  req.DoctorID,
			PatientID: patient.ID,
		}
		if err := repos.Appointments().Create(ctx, appointment); err != nil {
			return err
		}

		slot, err := repos.Slots().Bind(ctx, req.DoctorID, date, at, appointment.ID)
		if err != nil {
			return err
		}

		tok, err := s.tokens.Issue(ctx, repos, appointment.ID, req.DoctorID, date)
		if err != nil {
			return err
		}

		ref, err := reference.Encode(reference.Tuple{
			PatientID: patient.ID,
			DoctorID:  req.DoctorID,
			TokenNo:   tok.TokenNo,
			SlotID:    slot.ID,
		})
		if err != nil {
			return err
		}

		event, err := model.NewOutboxEvent(model.EventAppointmentBooked, bookedEvent{
			AppointmentID: appointment.ID,
			PatientID:     patient.ID,
			DoctorID:      req.DoctorID,
			SlotID:        slot.ID,
			Date:          date,
			Time:          at,
			TokenNo:       tok.TokenNo,
			Reference:     ref,
		})
		if err != nil {
			return apperrors.StoreFailure("encode booking event", err)
		}
		if err := repos.Outbox().Create(ctx, event); err != nil {
			return err
		}

		result = &model.BookingResult{
			AppointmentID: appointment.ID,
			PatientID:     patient.ID,
			SlotID:        slot.ID,
			TokenNo:       tok.TokenNo,
			Reference:     ref,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateRequest checks the request shape and normalizes the date, time and
// date of birth in place.
func (s *Service) validateRequest(req *model.BookingRequest) (date, at string, err error) {
	if req == nil {
		return "", "", apperrors.InvalidInput("booking request is required", nil)
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Validate(req); err != nil {
		return "", "", err
	}

	if date, err = model.NormalizeDate(req.Date); err != nil {
		return "", "", err
	}
	if at, err = model.NormalizeTime(req.Time); err != nil {
		return "", "", err
	}
	dob, err := model.NormalizeDate(req.DateOfBirth)
	if err != nil {
		return "", "", apperrors.InvalidInput("date_of_birth must be formatted YYYY-MM-DD", err)
	}
	if dob > date {
		return "", "", apperrors.InvalidInput("date_of_birth is after the appointment date", nil)
	}
	req.DateOfBirth = dob
	return date, at, nil
}
