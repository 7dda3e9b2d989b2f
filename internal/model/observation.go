package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the calendar date format used by FRED and by the record store.
const DateLayout = "2006-01-02"

// Observation is one (date, value) sample of a series. A nil Value means the
// source reported the point as missing.
type Observation struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value"`
}

// HasValue reports whether the observation carries a value.
func (o Observation) HasValue() bool { return o.Value != nil }

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: parse date %q", s)
	}
	return t, nil
}

// FormatDate renders t as a YYYY-MM-DD calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Truncate returns the calendar date of t as UTC midnight.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v, for building observations in code.
func Float(v float64) *float64 { return &v }
