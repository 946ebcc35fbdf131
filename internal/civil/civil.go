// Package civil holds calendar dates and wall-clock times without a zone.
// Both types are zero-padded strings so lexical order equals chronological order.
package civil

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")
)

// Date is a calendar day in YYYY-MM-DD form.
type Date string

// TimeOfDay is a wall-clock time in HH:MM form.
type TimeOfDay string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date(t.Format(dateLayout)), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// Weekday returns the day of week, or -1 when d is malformed.
func (d Date) Weekday() time.Weekday {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return -1
	}
	return t.Weekday()
}

func (d Date) Before(o Date) bool { return d < o }

// AddDays shifts the date by n days; a malformed date is returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(dateLayout))
}

// In returns the instant at which the given wall-clock time occurs on d in loc.
func (d Date) In(tod TimeOfDay, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout+" "+timeLayout, string(d)+" "+string(tod), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine %s %s: %w", d, tod, err)
	}
	return t, nil
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// accept HH:MM:SS as stored by some schedule sources
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	return TimeOfDay(t.Format(timeLayout)), nil
}

// TimeOfDayOf truncates t to the minute and returns its wall-clock time.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Format(timeLayout))
}

func (t TimeOfDay) String() string { return string(t) }

// Valid reports whether t is a canonical zero-padded HH:MM.
func (t TimeOfDay) Valid() bool {
	p, err := time.Parse(timeLayout, string(t))
	return err == nil && p.Format(timeLayout) == string(t)
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t < o }

// Minutes returns minutes since midnight, or -1 when malformed.
func (t TimeOfDay) Minutes() int {
	p, err := time.Parse(timeLayout, string(t))
	if err != nil {
		return -1
	}
	return p.Hour()*60 + p.Minute()
}
