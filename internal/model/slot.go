package model

// Slot is a bookable (doctor, date, time) unit. AppointmentID is set once a
// booking consumes the slot and never cleared.
type Slot struct {
	Base
	DoctorID      int64  `db:"doctor_id" json:"doctor_id"`
	Date          string `db:"slot_date" json:"date"`
	Time          string `db:"slot_time" json:"time"`
	AppointmentID *int64 `db:"appointment_id" json:"appointment_id,omitempty"`
}

func (s *Slot) Booked() bool {
	return s.AppointmentID != nil
}

type CreateSlotRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

type CreateSlotsRequest struct {
	Date  string   `json:"date" binding:"required"`
	Times []string `json:"times" binding:"required,min=1"`
}

type CreateSlotsResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}
