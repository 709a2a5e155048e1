// Package reference encodes and decodes the booking reference handed to
// patients, e.g. REF-0001-0001-001-0001.
//
// The four groups are patient id, doctor id, token number and slot id, each
// zero padded to a fixed width. A reference is enough to look an appointment
// up without authentication.
package reference

import (
	"fmt"
	"regexp"
	"strconv"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const Prefix = "REF-"

// Group widths, in digits.
const (
	PatientWidth = 4
	DoctorWidth  = 4
	TokenWidth   = 3
	SlotWidth    = 4
)

const (
	MaxPatientID = 9999
	MaxDoctorID  = 9999
	MaxTokenNo   = 999
	MaxSlotID    = 9999
)

var pattern = regexp.MustCompile(`^REF-(\d{4})-(\d{4})-(\d{3})-(\d{4})$`)

// Tuple is the decoded content of a reference.
type Tuple struct {
	PatientID int64 `json:"patient_id"`
	DoctorID  int64 `json:"doctor_id"`
	TokenNo   int   `json:"token_no"`
	SlotID    int64 `json:"slot_id"`
}

// Format renders t without range checks. Values wider than their group are
// written in full, which yields a string Decode will reject.
func Format(t Tuple) string {
	return fmt.Sprintf("REF-%04d-%04d-%03d-%04d", t.PatientID, t.DoctorID, t.TokenNo, t.SlotID)
}

// Encode renders t, failing with ReferenceOverflow when a value is negative
// or does not fit its group.
func Encode(t Tuple) (string, error) {
	if err := check("patient id", t.PatientID, MaxPatientID); err != nil {
		return "", err
	}
	if err := check("doctor id", t.DoctorID, MaxDoctorID); err != nil {
		return "", err
	}
	if err := check("token number", int64(t.TokenNo), MaxTokenNo); err != nil {
		return "", err
	}
	if err := check("slot id", t.SlotID, MaxSlotID); err != nil {
		return "", err
	}
	return Format(t), nil
}

// Decode parses an exact reference string.
func Decode(ref string) (Tuple, error) {
	m := pattern.FindStringSubmatch(ref)
	if m == nil {
		return Tuple{}, apperrors.MalformedReference(ref)
	}

	// The pattern guarantees four short digit runs, so parsing cannot fail.
	patientID, _ := strconv.ParseInt(m[1], 10, 64)
	doctorID, _ := strconv.ParseInt(m[2], 10, 64)
	tokenNo, _ := strconv.Atoi(m[3])
	slotID, _ := strconv.ParseInt(m[4], 10, 64)

	return Tuple{
		PatientID: patientID,
		DoctorID:  doctorID,
		TokenNo:   tokenNo,
		SlotID:    slotID,
	}, nil
}

// Fits reports whether every value of t is representable.
func Fits(t Tuple) bool {
	_, err := Encode(t)
	return err == nil
}

func check(field string, v, max int64) error {
	if v < 0 || v > max {
		return apperrors.ReferenceOverflow(fmt.Sprintf("%s %d does not fit a reference (max %d)", field, v, max))
	}
	return nil
}
