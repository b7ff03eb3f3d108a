package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteProfile is returned when a profile lacks fields required to start an assessment.
var ErrIncompleteProfile = errors.New("incomplete profile")

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC on the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, string(text))
	if err != nil {
		return fmt.Errorf("parse date %q: %w", text, err)
	}
	*d = DateOf(t)
	return nil
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Profile holds the fields collected before an assessment starts.
type Profile struct {
	Name             string `json:"name,omitempty"`
	DateOfBirth      Date   `json:"dob"`
	Premature        *bool  `json:"premature,omitempty"`
	GestationalWeeks *int   `json:"gestational_weeks,omitempty"`
}

// Validate checks that the profile can be sent to the backend.
func (p Profile) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name missing", ErrIncompleteProfile)
	case p.DateOfBirth.IsZero():
		return fmt.Errorf("%w: date of birth missing", ErrIncompleteProfile)
	case p.Premature == nil:
		return fmt.Errorf("%w: prematurity unknown", ErrIncompleteProfile)
	case *p.Premature && p.GestationalWeeks == nil:
		return fmt.Errorf("%w: gestational weeks missing", ErrIncompleteProfile)
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	c := p
	if p.Premature != nil {
		v := *p.Premature
		c.Premature = &v
	}
	if p.GestationalWeeks != nil {
		v := *p.GestationalWeeks
		c.GestationalWeeks = &v
	}
	return c
}
