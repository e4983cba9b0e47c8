package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// DepartmentDirectory exposes department lookup operations.
type DepartmentDirectory interface {
	GetDepartment(ctx context.Context, id string) (Department, error)
}

// QuotaTracker computes a department's weekly quota consumption. The weekly
// counter is always derived from the request table, never stored, so it cannot
// drift; a short-TTL cache absorbs repeated probes within one booking flow.
type QuotaTracker struct {
	requests    RequestSource
	departments DepartmentDirectory
	cache       *usageCache
}

// NewQuotaTracker wires the tracker to its collaborators. now feeds the cache
// clock and may be nil.
func NewQuotaTracker(requests RequestSource, departments DepartmentDirectory, now func() time.Time) *QuotaTracker {
	return &QuotaTracker{
		requests:    requests,
		departments: departments,
		cache:       newUsageCache(0, 0, now),
	}
}

// RemainingQuota reports the department's configured limit and its pending
// plus approved bookings inside the Monday-Sunday week containing date.
// A nil limit means the department is uncapped; an explicit zero blocks the
// whole week. Remaining never goes below zero.
func (t *QuotaTracker) RemainingQuota(ctx context.Context, departmentID string, date time.Time) (QuotaUsage, error) {
	weekStart, weekEnd := timeslot.WeekBounds(date)

	department, err := t.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return QuotaUsage{}, ErrNotFound
		}
		return QuotaUsage{}, collaboratorFailure("department directory", err)
	}

	used, err := t.weeklyUsed(ctx, departmentID, weekStart, weekEnd)
	if err != nil {
		return QuotaUsage{}, err
	}

	usage := QuotaUsage{
		DepartmentID: departmentID,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
		Limit:        department.WeeklyLimit,
		Used:         used,
	}
	if department.WeeklyLimit == nil {
		usage.Remaining = -1
		return usage, nil
	}
	usage.Remaining = max(0, *department.WeeklyLimit-used)
	return usage, nil
}

// HasCapacity reports whether one more booking fits into the week containing
// date, evaluated before the new request is counted.
func (t *QuotaTracker) HasCapacity(ctx context.Context, departmentID string, date time.Time) (bool, error) {
	usage, err := t.RemainingQuota(ctx, departmentID, date)
	if err != nil {
		return false, err
	}
	if usage.Unlimited() {
		return true, nil
	}
	return usage.Remaining > 0, nil
}

// Invalidate drops all cached usage counts. Every request write calls this.
func (t *QuotaTracker) Invalidate() {
	t.cache.Invalidate()
}

func (t *QuotaTracker) weeklyUsed(ctx context.Context, departmentID string, weekStart, weekEnd time.Time) (int, error) {
	key := usageCacheKey(departmentID, weekStart)
	if used, ok := t.cache.Get(key); ok {
		return used, nil
	}

	requests, err := t.requests.ListRequests(ctx, RequestQuery{
		DepartmentID: departmentID,
		Statuses:     []Status{StatusPending, StatusApproved},
		DateFrom:     &weekStart,
		DateTo:       &weekEnd,
	})
	if err != nil {
		return 0, collaboratorFailure("request repository", err)
	}

	used := 0
	for _, req := range requests {
		if req.Status.ReservesSlot() {
			used++
		}
	}

	t.cache.Store(key, used)
	return used, nil
}
