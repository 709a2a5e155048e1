package model

import (
	"strings"
	"time"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

// ParseDate accepts YYYY-MM-DD only.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("date must be formatted YYYY-MM-DD", err)
	}
	return d, nil
}

// NormalizeDate returns s in canonical YYYY-MM-DD form.
func NormalizeDate(s string) (string, error) {
	d, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return d.Format(DateLayout), nil
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM. Seconds must be
// zero since slots are stored to the minute.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return "", apperrors.InvalidInput("time must be a whole minute", nil)
		}
		return t.Format(TimeLayout), nil
	}
	return "", apperrors.InvalidInput("time must be formatted HH:MM", nil)
}
