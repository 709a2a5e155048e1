package auth

import (
	"context"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/security"
)

type Service struct {
	store  repository.Store
	jwtSvc auth.JWTService
	hasher security.PasswordHasher
	logger *logger.Logger
}

func NewService(store repository.Store, jwtSvc auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{store: store, jwtSvc: jwtSvc, hasher: hasher, logger: log}
}

// Login checks the credentials and issues an access token whose claims carry
// the user's role and profile id. Unknown users and wrong passwords fail the
// same way.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("login failed", "username", username, "reason", "unknown user")
			return nil, apperrors.Unauthorized(nil)
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.logger.Info("login failed", "username", username, "reason", "bad password")
		return nil, apperrors.Unauthorized(nil)
	}

	profile, err := s.profileOf(ctx, user)
	if err != nil {
		return nil, err
	}

	actor := &model.Actor{UserID: user.ID, Role: user.Role, ProfileID: profile.ProfileID()}
	token, err := s.jwtSvc.GenerateAccessToken(actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
		Role:        user.Role,
	}, nil
}

// Authenticate turns a bearer token into the actor it was issued for.
func (s *Service) Authenticate(token string) (*model.Actor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return claims.Actor(), nil
}

// Me returns the actor together with its role-specific profile. A token
// whose user was deleted since issue is rejected.
func (s *Service) Me(ctx context.Context, actor *model.Actor) (*model.MeResponse, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	user, err := s.store.Users().Get(ctx, actor.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(err)
		}
		return nil, err
	}
	profile, err := s.profileOf(ctx, user)
	if err != nil {
		return nil, err
	}
	return &model.MeResponse{Actor: actor, Profile: profile}, nil
}

func (s *Service) profileOf(ctx context.Context, user *model.User) (model.Profile, error) {
	var (
		profile model.Profile
		err     error
	)
	switch user.Role {
	case model.RoleDoctor:
		var d *model.Doctor
		if d, err = s.store.Doctors().GetByUserID(ctx, user.ID); err == nil {
			profile = &model.DoctorProfile{Doctor: d}
		}
	case model.RoleReceptionist:
		var r *model.Receptionist
		if r, err = s.store.Receptionists().GetByUserID(ctx, user.ID); err == nil {
			profile = &model.ReceptionistProfile{Receptionist: r}
		}
	case model.RoleAdmin:
		var a *model.Admin
		if a, err = s.store.Admins().GetByUserID(ctx, user.ID); err == nil {
			profile = &model.AdminProfile{Admin: a}
		}
	default:
		return nil, apperrors.Unauthorized(nil)
	}
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("user has no profile", "user_id", user.ID, "role", user.Role)
			return nil, apperrors.Unauthorized(err)
		}
		return nil, err
	}
	return profile, nil
}
