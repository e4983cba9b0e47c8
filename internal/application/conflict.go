package application

import (
	"context"
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// RequestQuery narrows request listings issued to the repository. Predicates
// compose from validated primitives; no caller assembles query text.
type RequestQuery struct {
	RequesterID  string
	DepartmentID string
	Statuses     []Status
	DateFrom     *time.Time
	DateTo       *time.Time
	ExcludeID    string
}

// RequestSource is the read-side repository contract shared by the conflict
// detector and the quota tracker.
type RequestSource interface {
	ListRequests(ctx context.Context, query RequestQuery) ([]MeetingRequest, error)
}

// ConflictDetector decides whether a candidate slot collides with a request
// the user already holds.
type ConflictDetector struct {
	requests RequestSource
}

// NewConflictDetector wires the detector to its request source.
func NewConflictDetector(requests RequestSource) *ConflictDetector {
	return &ConflictDetector{requests: requests}
}

// HasUserConflict reports whether the user holds a pending or approved request
// overlapping [start, end) on date. excludeID, when non-empty, skips one
// request so an edit does not conflict with itself. Storage errors propagate;
// callers must fail closed rather than treat them as "no conflict".
func (d *ConflictDetector) HasUserConflict(ctx context.Context, userID string, date time.Time, start, end timeslot.ClockTime, excludeID string) (bool, error) {
	day := timeslot.NormalizeDate(date)
	existing, err := d.requests.ListRequests(ctx, RequestQuery{
		RequesterID: userID,
		Statuses:    []Status{StatusPending, StatusApproved},
		DateFrom:    &day,
		DateTo:      &day,
		ExcludeID:   excludeID,
	})
	if err != nil {
		return false, collaboratorFailure("request repository", err)
	}

	for _, req := range existing {
		if !req.Status.ReservesSlot() {
			continue
		}
		if timeslot.Overlaps(req.Date, req.StartTime, req.EndTime, day, start, end) {
			return true, nil
		}
	}
	return false, nil
}
