package model

import "time"

// DateLayout is the storage format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders the calendar date of t, ignoring its time and zone.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf returns the calendar date of t (in t's own location) as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func StringPtr(s string) *string { return &s }
func IntPtr(n int) *int          { return &n }
