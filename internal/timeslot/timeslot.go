package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day expressed as minutes since midnight.
// Booking windows never cross midnight, so a pair of ClockTime values together
// with a calendar date fully describes a slot.
type ClockTime int

// ErrInvalidClockTime indicates a value outside the 00:00-24:00 range or a
// string that does not parse as HH:MM.
var ErrInvalidClockTime = errors.New("timeslot: invalid clock time")

// ParseClock parses an "HH:MM" string into a ClockTime. "24:00" is accepted as
// an exclusive end-of-day bound.
func ParseClock(value string) (ClockTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, value)
	}
	return ClockTime(hour*60 + minute), nil
}

// Valid reports whether the clock time lies within a single day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= 24*60
}

// String renders the clock time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// NormalizeDate truncates a timestamp to its UTC civil date. All quota and
// conflict accounting operates on normalized dates.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same civil date.
func SameDate(a, b time.Time) bool {
	return NormalizeDate(a).Equal(NormalizeDate(b))
}

// Overlaps reports whether two booking windows overlap. Windows are half-open
// intervals [start, end) on a single calendar date: a meeting ending at 10:00
// never conflicts with one starting at 10:00, and windows on different dates
// never overlap.
func Overlaps(aDate time.Time, aStart, aEnd ClockTime, bDate time.Time, bStart, bEnd ClockTime) bool {
	if !SameDate(aDate, bDate) {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// WeekBounds returns the Monday-through-Sunday week containing date. The start
// is the Monday on or before date and the end is the following Sunday, both
// normalized to UTC civil dates. The end is inclusive.
func WeekBounds(date time.Time) (start, end time.Time) {
	day := NormalizeDate(date)
	// In Go, Monday == 1 and Sunday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, 6)
	return start, end
}
