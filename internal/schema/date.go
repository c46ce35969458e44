package schema

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without a time-of-day component, serialized as
// YYYY-MM-DD to match the remote wire format.
type Date struct {
	time.Time
}

// NewDate builds a date value for t's calendar day.
func NewDate(t time.Time) *Date {
	d := Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
	return &d
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Format("2006-01-02"))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}
