package recurrence

import (
	"errors"
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// MaxWeekCount bounds how many weeks a recurring series may span.
const MaxWeekCount = 8

// Series describes a weekly recurring booking request before expansion. It is
// transient: the engine turns it into candidate dates and it is never stored.
type Series struct {
	AnchorDate time.Time
	Weekdays   []time.Weekday
	WeekCount  int
}

// ErrInvalidWeekCount indicates the requested week count lies outside 1..MaxWeekCount.
var ErrInvalidWeekCount = errors.New("recurrence: week count out of range")

// ErrNoWeekdays indicates the series selects no weekdays at all.
var ErrNoWeekdays = errors.New("recurrence: at least one weekday is required")

// ErrInvalidAnchor indicates the series anchor date is missing.
var ErrInvalidAnchor = errors.New("recurrence: anchor date is required")

// Expand generates the candidate dates for a series.
//
// The engine walks every calendar day from the anchor date (inclusive) for
// WeekCount*7 days and keeps the dates whose weekday is selected. Dates are
// returned normalized to UTC civil dates in ascending order. Admissibility of
// the individual dates is the caller's concern; the engine is purely
// combinatorial.
func Expand(series Series) ([]time.Time, error) {
	if series.AnchorDate.IsZero() {
		return nil, ErrInvalidAnchor
	}
	if series.WeekCount < 1 || series.WeekCount > MaxWeekCount {
		return nil, ErrInvalidWeekCount
	}

	selected := make(map[time.Weekday]struct{}, len(series.Weekdays))
	for _, day := range series.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		selected[day] = struct{}{}
	}
	if len(selected) == 0 {
		return nil, ErrNoWeekdays
	}

	anchor := timeslot.NormalizeDate(series.AnchorDate)
	dates := make([]time.Time, 0, series.WeekCount*len(selected))
	for offset := 0; offset < series.WeekCount*7; offset++ {
		candidate := anchor.AddDate(0, 0, offset)
		if _, ok := selected[candidate.Weekday()]; ok {
			dates = append(dates, candidate)
		}
	}

	return dates, nil
}
