package application

import (
	"context"
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// ClosureCalendar is the administrative closure collaborator: it knows which
// calendar dates are closed for booking (holidays, maintenance windows).
type ClosureCalendar interface {
	IsClosed(ctx context.Context, date time.Time) (bool, error)
}

// AvailabilityGate combines the closure calendar, the conflict detector and
// the quota tracker into a single per-date admissibility decision.
type AvailabilityGate struct {
	calendar  ClosureCalendar
	conflicts *ConflictDetector
	quotas    *QuotaTracker
}

// NewAvailabilityGate wires the gate to its collaborators.
func NewAvailabilityGate(calendar ClosureCalendar, conflicts *ConflictDetector, quotas *QuotaTracker) *AvailabilityGate {
	return &AvailabilityGate{calendar: calendar, conflicts: conflicts, quotas: quotas}
}

// IsAdmissible evaluates the three booking rules in order, short-circuiting on
// the first failure: closure calendar, user conflict, department quota. The
// ordering fixes which reason the user sees when several rules would fail.
// Collaborator errors propagate so callers fail closed instead of assuming the
// slot is free.
func (g *AvailabilityGate) IsAdmissible(ctx context.Context, userID, departmentID string, date time.Time, start, end timeslot.ClockTime, excludeID string) (Availability, error) {
	if g.calendar != nil {
		closed, err := g.calendar.IsClosed(ctx, date)
		if err != nil {
			return Availability{}, collaboratorFailure("closure calendar", err)
		}
		if closed {
			return Availability{Reason: ReasonDateClosed}, nil
		}
	}

	conflict, err := g.conflicts.HasUserConflict(ctx, userID, date, start, end, excludeID)
	if err != nil {
		return Availability{}, err
	}
	if conflict {
		return Availability{Reason: ReasonUserConflict}, nil
	}

	ok, err := g.quotas.HasCapacity(ctx, departmentID, date)
	if err != nil {
		return Availability{}, err
	}
	if !ok {
		return Availability{Reason: ReasonQuotaExceeded}, nil
	}

	return Availability{Available: true}, nil
}
