package model

import (
	"time"
)

// Appointment is the aggregate created by a booking. Completed is set by the
// doctor after the visit; Confirmed is set by reception. The two never
// influence each other.
type Appointment struct {
	Base
	Reason    string `db:"reason" json:"reason"`
	DoctorID  int64  `db:"doctor_id" json:"doctor_id"`
	PatientID int64  `db:"patient_id" json:"patient_id"`
	Completed bool   `db:"completed" json:"completed"`
	Confirmed bool   `db:"confirmed" json:"confirmed"`
}

// Token is the queue number of an appointment within its doctor's day.
type Token struct {
	AppointmentID int64  `db:"appointment_id" json:"appointment_id"`
	DoctorID      int64  `db:"doctor_id" json:"doctor_id"`
	Date          string `db:"slot_date" json:"date"`
	TokenNo       int    `db:"token_no" json:"token_no"`
}

type Confirmation struct {
	AppointmentID  int64     `db:"appointment_id" json:"appointment_id"`
	ReceptionistID int64     `db:"receptionist_id" json:"receptionist_id"`
	Confirmed      bool      `db:"confirmed" json:"confirmed"`
	ConfirmedAt    time.Time `db:"confirmed_at" json:"confirmed_at"`
}

// AppointmentView is the joined, read-only picture of an appointment shown by
// status lookup and the staff listings.
type AppointmentView struct {
	AppointmentID    int64   `db:"appointment_id" json:"appointment_id"`
	Reference        string  `db:"-" json:"reference"`
	Reason           string  `db:"reason" json:"reason"`
	Completed        bool    `db:"completed" json:"completed"`
	Confirmed        bool    `db:"confirmed" json:"confirmed"`
	PatientID        int64   `db:"patient_id" json:"patient_id"`
	PatientName      string  `db:"patient_name" json:"patient_name"`
	PatientContact   string  `db:"patient_contact" json:"patient_contact"`
	DoctorID         int64   `db:"doctor_id" json:"doctor_id"`
	DoctorName       string  `db:"doctor_name" json:"doctor_name"`
	Specialization   string  `db:"specialization" json:"specialization"`
	SlotID           int64   `db:"slot_id" json:"slot_id"`
	Date             string  `db:"slot_date" json:"date"`
	Time             string  `db:"slot_time" json:"time"`
	TokenNo          int     `db:"token_no" json:"token_no"`
	ReceptionistName *string `db:"receptionist_name" json:"receptionist_name,omitempty"`
}

type BookingRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	ContactNo   string `json:"contact_no" validate:"required"`
	Address     string `json:"address" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	Gender      Gender `json:"gender" validate:"required,oneof=Male Female Other"`
	DoctorID    int64  `json:"doctor_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	Reason      string `json:"reason" validate:"required,max=1000"`
}

type BookingResult struct {
	AppointmentID int64  `json:"appointment_id"`
	PatientID     int64  `json:"patient_id"`
	SlotID        int64  `json:"slot_id"`
	TokenNo       int    `json:"token_no"`
	Reference     string `json:"reference"`
}

type LookupRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type VisitStatus string

const (
	VisitStatusAll       VisitStatus = "all"
	VisitStatusPending   VisitStatus = "pending"
	VisitStatusCompleted VisitStatus = "completed"
)

type AppointmentFilters struct {
	DoctorID      int64
	Date          string
	Status        VisitStatus
	ConfirmedOnly bool
}

type UpdateVisitStatusRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}
