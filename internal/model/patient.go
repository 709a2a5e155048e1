package model

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Patient is keyed by email. It is created on the first booking made with an
// address and reused, unchanged, by every later booking with it.
type Patient struct {
	Base
	Name        string `db:"name" json:"name"`
	Email       string `db:"email" json:"email"`
	ContactNo   string `db:"contact_no" json:"contact_no"`
	Address     string `db:"address" json:"address"`
	DateOfBirth string `db:"date_of_birth" json:"date_of_birth"`
	Gender      Gender `db:"gender" json:"gender"`
}
