package entity

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DayLayout is the layout used for every date the system emits
	DayLayout = "2006-01-02"
	// InputLayout is the layout accepted from the command line
	InputLayout = "02.01.2006"

	secondsPerDay = 24 * 60 * 60
)

// DateWindow is an inclusive range of calendar days requested by a caller
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateWindow normalizes both bounds to UTC midnight and validates the window
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	w := DateWindow{Start: Day(start), End: Day(end)}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

// Validate ensures the window has both bounds and does not run backwards
func (w DateWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidWindow)
	}

	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidWindow, FormatDay(w.End), FormatDay(w.Start))
	}

	return nil
}

// Len returns the number of days in the window
func (w DateWindow) Len() int {
	if w.End.Before(w.Start) {
		return 0
	}
	return int((Day(w.End).Unix()-Day(w.Start).Unix())/secondsPerDay) + 1
}

// Days returns every day of the window in ascending order
func (w DateWindow) Days() []time.Time {
	days := make([]time.Time, 0, w.Len())
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day as YYYY-MM-DD
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseInputDate parses a DD.MM.YYYY date
func ParseInputDate(s string) (time.Time, error) {
	t, err := time.Parse(InputLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be in DD.MM.YYYY format", ErrInvalidWindow, s)
	}
	return t, nil
}

// ParseDay accepts either YYYY-MM-DD or DD.MM.YYYY
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(InputLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: date %q must be in YYYY-MM-DD or DD.MM.YYYY format", ErrInvalidWindow, s)
}
