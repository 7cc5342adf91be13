package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used on the wire, in SQL parameters
// and in every exported report.
const DateLayout = "2006-01-02"

// DateWindow is a closed [From, To] interval at calendar-day granularity.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// NewDateWindow truncates both ends to midnight UTC and validates the result.
func NewDateWindow(from, to time.Time) (DateWindow, error) {
	w := DateWindow{From: DateOnly(from), To: DateOnly(to)}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

// Validate rejects zero or inverted windows.
func (w DateWindow) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: both ends are required", ErrInvalidWindow)
	}
	if DateOnly(w.From).After(DateOnly(w.To)) {
		return fmt.Errorf("%w: from %s is after to %s",
			ErrInvalidWindow, w.From.Format(DateLayout), w.To.Format(DateLayout))
	}
	return nil
}

// Days returns the number of calendar days covered, inclusive.
func (w DateWindow) Days() int {
	return DaysBetween(w.From, w.To) + 1
}

// Contains reports whether d falls on a day inside the window.
func (w DateWindow) Contains(d time.Time) bool {
	d = DateOnly(d)
	return !d.Before(DateOnly(w.From)) && !d.After(DateOnly(w.To))
}

func (w DateWindow) String() string {
	return w.From.Format(DateLayout) + ".." + w.To.Format(DateLayout)
}

// DateRange is an inclusive run of consecutive calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of days in the range, inclusive.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// MissingRange is a contiguous span of days a store has no local rates for.
type MissingRange struct {
	StoreID StoreID
	DateRange
}

// DateOnly drops the clock part and pins the date to UTC so that equal
// calendar days compare equal regardless of the source location.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b (negative if b < a).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// ParseDate accepts the layouts seen in warehouse rows and API payloads.
func ParseDate(value string) (time.Time, error) {
	layouts := []string{
		DateLayout,
		"2006/01/02",
		"01/02/2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return DateOnly(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}
