package model

type Specialization struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

type Doctor struct {
	Base
	UserID           int64  `db:"user_id" json:"user_id"`
	Name             string `db:"name" json:"name"`
	Gender           Gender `db:"gender" json:"gender"`
	Email            string `db:"email" json:"email"`
	ContactNo        string `db:"contact_no" json:"contact_no"`
	Address          string `db:"address" json:"address"`
	SpecializationID int64  `db:"specialization_id" json:"specialization_id"`
	Specialization   string `db:"specialization" json:"specialization,omitempty"`
}

// DoctorSummary is what the booking form needs to list doctors.
type DoctorSummary struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Receptionist struct {
	Base
	UserID    int64  `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	Gender    Gender `db:"gender" json:"gender"`
	Email     string `db:"email" json:"email"`
	ContactNo string `db:"contact_no" json:"contact_no"`
	Address   string `db:"address" json:"address"`
}

type Admin struct {
	Base
	UserID int64  `db:"user_id" json:"user_id"`
	Name   string `db:"name" json:"name"`
}

type CreateStaffRequest struct {
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	Gender           Gender `json:"gender" validate:"required,oneof=Male Female Other"`
	ContactNo        string `json:"contact_no" validate:"required"`
	Address          string `json:"address" validate:"required"`
	SpecializationID int64  `json:"specialization_id"`
	Username         string `json:"username" validate:"required"`
	Password         string `json:"password" validate:"required,min=8"`
}

type UpdateDoctorProfileRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	ContactNo string `json:"contact_no" validate:"required"`
	Address   string `json:"address" validate:"required"`
}

// StaffMember is one row of the admin staff listing.
type StaffMember struct {
	ID             int64  `db:"id" json:"id"`
	Role           Role   `db:"role" json:"role"`
	Name           string `db:"name" json:"name"`
	Email          string `db:"email" json:"email"`
	Username       string `db:"username" json:"username"`
	Specialization string `db:"specialization" json:"specialization,omitempty"`
}

type CreateSpecializationRequest struct {
	Title string `json:"title" validate:"required"`
}
