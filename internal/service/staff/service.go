// Package staff manages the hospital directory: specializations, doctors,
// receptionists and the admin accounts that maintain them.
package staff

import (
	"context"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type Service struct {
	store    repository.Store
	hasher   security.PasswordHasher
	validate validator.Validator
	logger   *logger.Logger
}

func NewService(store repository.Store, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{store: store, hasher: hasher, validate: validator.New(), logger: log}
}

func (s *Service) ListSpecializations(ctx context.Context) ([]*model.Specialization, error) {
	return s.store.Doctors().ListSpecializations(ctx)
}

func (s *Service) ListDoctorsBySpecialization(ctx context.Context, specializationID int64) ([]*model.DoctorSummary, error) {
	return s.store.Doctors().ListBySpecialization(ctx, specializationID)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	return s.store.Doctors().Get(ctx, id)
}

func (s *Service) CreateSpecialization(ctx context.Context, actor *model.Actor, req *model.CreateSpecializationRequest) (*model.Specialization, error) {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.InvalidInput("title is required", nil)
	}
	spec := &model.Specialization{Title: title}
	if err := s.store.Doctors().CreateSpecialization(ctx, spec); err != nil {
		return nil, err
	}
	s.logger.Info("specialization created", "specialization_id", spec.ID, "title", title)
	return spec, nil
}

// AddDoctor creates the doctor's login and profile together.
func (s *Service) AddDoctor(ctx context.Context, actor *model.Actor, req *model.CreateStaffRequest) (*model.Doctor, error) {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return nil, err
	}
	if req.SpecializationID <= 0 {
		return nil, apperrors.InvalidInput("specialization_id is required", nil)
	}
	hash, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	doctor := &model.Doctor{
		Name:             req.Name,
		Gender:           req.Gender,
		Email:            req.Email,
		ContactNo:        req.ContactNo,
		Address:          req.Address,
		SpecializationID: req.SpecializationID,
	}
	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		user := &model.User{Username: req.Username, PasswordHash: hash, Role: model.RoleDoctor}
		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		doctor.UserID = user.ID
		return repos.Doctors().Create(ctx, doctor)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("doctor added", "doctor_id", doctor.ID, "user_id", doctor.UserID)
	return doctor, nil
}

func (s *Service) AddReceptionist(ctx context.Context, actor *model.Actor, req *model.CreateStaffRequest) (*model.Receptionist, error) {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return nil, err
	}
	hash, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	rec := &model.Receptionist{
		Name:      req.Name,
		Gender:    req.Gender,
		Email:     req.Email,
		ContactNo: req.ContactNo,
		Address:   req.Address,
	}
	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		user := &model.User{Username: req.Username, PasswordHash: hash, Role: model.RoleReceptionist}
		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		rec.UserID = user.ID
		return repos.Receptionists().Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("receptionist added", "receptionist_id", rec.ID, "user_id", rec.UserID)
	return rec, nil
}

// DeleteDoctor removes the doctor's login, profile and unbooked slots. A
// doctor with appointments on record cannot be removed.
func (s *Service) DeleteDoctor(ctx context.Context, actor *model.Actor, doctorID int64) error {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		doctor, err := repos.Doctors().Get(ctx, doctorID)
		if err != nil {
			return err
		}
		n, err := repos.Appointments().CountByDoctor(ctx, doctorID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Conflict("doctor has appointments on record", nil)
		}
		return repos.Users().Delete(ctx, doctor.UserID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("doctor deleted", "doctor_id", doctorID)
	return nil
}

// DeleteReceptionist removes the receptionist's login and profile. Past
// confirmations stay confirmed but lose the receptionist's name.
func (s *Service) DeleteReceptionist(ctx context.Context, actor *model.Actor, receptionistID int64) error {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		rec, err := repos.Receptionists().Get(ctx, receptionistID)
		if err != nil {
			return err
		}
		return repos.Users().Delete(ctx, rec.UserID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("receptionist deleted", "receptionist_id", receptionistID)
	return nil
}

func (s *Service) ListStaff(ctx context.Context, actor *model.Actor) ([]*model.StaffMember, error) {
	if err := actor.Require(model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Users().ListStaff(ctx)
}

// UpdateDoctorProfile lets a doctor edit their own contact details.
func (s *Service) UpdateDoctorProfile(ctx context.Context, actor *model.Actor, req *model.UpdateDoctorProfileRequest) (*model.Doctor, error) {
	if err := actor.Require(model.RoleDoctor); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	doctor := &model.Doctor{
		Base:      model.Base{ID: actor.ProfileID},
		Name:      req.Name,
		Email:     req.Email,
		ContactNo: strings.TrimSpace(req.ContactNo),
		Address:   strings.TrimSpace(req.Address),
	}
	if err := s.store.Doctors().UpdateProfile(ctx, doctor); err != nil {
		return nil, err
	}
	return s.store.Doctors().Get(ctx, actor.ProfileID)
}

// SeedAdmin creates an admin account unless the username is already taken.
// created reports whether anything was written.
func (s *Service) SeedAdmin(ctx context.Context, username, password, name string) (created bool, err error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, apperrors.InvalidInput("username is required", nil)
	}
	if name == "" {
		name = username
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	err = s.store.WithTx(ctx, func(repos repository.Repositories) error {
		user := &model.User{Username: username, PasswordHash: hash, Role: model.RoleAdmin}
		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		return repos.Admins().Create(ctx, &model.Admin{UserID: user.ID, Name: name})
	})
	if apperrors.Is(err, apperrors.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("admin seeded", "username", username)
	return true, nil
}

// prepare validates and trims req in place and returns the password hash.
func (s *Service) prepare(req *model.CreateStaffRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.ContactNo = strings.TrimSpace(req.ContactNo)
	req.Address = strings.TrimSpace(req.Address)
	if err := s.validate.Validate(req); err != nil {
		return "", err
	}
	return s.hasher.Hash(req.Password)
}
