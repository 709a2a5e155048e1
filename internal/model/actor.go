package model

import (
	"fmt"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleDoctor, RoleReceptionist:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated identity a request acts as. ProfileID is the id
// of the doctor, receptionist or admin row belonging to UserID.
type Actor struct {
	UserID    int64 `json:"user_id"`
	Role      Role  `json:"role"`
	ProfileID int64 `json:"profile_id"`
}

// Can reports whether the actor holds one of roles.
func (a *Actor) Can(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Require is the capability guard run before mutating operations.
func (a *Actor) Require(roles ...Role) error {
	if a == nil {
		return apperrors.Unauthorized(nil)
	}
	if !a.Can(roles...) {
		return apperrors.Forbidden(fmt.Sprintf("role %q may not perform this action", a.Role))
	}
	return nil
}

// Profile is the role-specific record of a staff user: exactly one of
// *DoctorProfile, *ReceptionistProfile or *AdminProfile.
type Profile interface {
	Kind() Role
	ProfileID() int64
	DisplayName() string
}

type DoctorProfile struct {
	Doctor *Doctor `json:"doctor"`
}

type ReceptionistProfile struct {
	Receptionist *Receptionist `json:"receptionist"`
}

type AdminProfile struct {
	Admin *Admin `json:"admin"`
}

func (p *DoctorProfile) Kind() Role          { return RoleDoctor }
func (p *DoctorProfile) ProfileID() int64    { return p.Doctor.ID }
func (p *DoctorProfile) DisplayName() string { return p.Doctor.Name }

func (p *ReceptionistProfile) Kind() Role          { return RoleReceptionist }
func (p *ReceptionistProfile) ProfileID() int64    { return p.Receptionist.ID }
func (p *ReceptionistProfile) DisplayName() string { return p.Receptionist.Name }

func (p *AdminProfile) Kind() Role          { return RoleAdmin }
func (p *AdminProfile) ProfileID() int64    { return p.Admin.ID }
func (p *AdminProfile) DisplayName() string { return p.Admin.Name }
