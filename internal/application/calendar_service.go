package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/timeslot"
)

// ClosedDateRepository captures the persistence operations for the closure calendar.
type ClosedDateRepository interface {
	AddClosedDate(ctx context.Context, closed ClosedDate) (ClosedDate, error)
	RemoveClosedDate(ctx context.Context, date time.Time) error
	IsClosed(ctx context.Context, date time.Time) (bool, error)
	ListClosedDates(ctx context.Context, from, to time.Time) ([]ClosedDate, error)
}

// CalendarService manages the administrative closure calendar. It also serves
// as the gate's ClosureCalendar.
type CalendarService struct {
	closedDates ClosedDateRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalendarService constructs a calendar service with the provided dependencies.
func NewCalendarService(closedDates ClosedDateRepository, now func() time.Time, logger *slog.Logger) *CalendarService {
	if now == nil {
		now = time.Now
	}
	return &CalendarService{
		closedDates: closedDates,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// CloseDate marks a date as closed for booking. Closing a date does not touch
// existing requests on it; it only blocks new ones.
func (s *CalendarService) CloseDate(ctx context.Context, principal Principal, date time.Time, reason string) (ClosedDate, error) {
	if s == nil || s.closedDates == nil {
		return ClosedDate{}, fmt.Errorf("closed date repository not configured")
	}
	if !principal.IsAdmin {
		return ClosedDate{}, ErrUnauthorized
	}
	if date.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "date is required")
		return ClosedDate{}, vErr
	}

	logger := s.loggerWith(ctx, "CloseDate",
		"principal_id", principal.UserID,
		"date", date.Format(dateLayout),
	)

	closed := ClosedDate{
		Date:      timeslot.NormalizeDate(date),
		Reason:    strings.TrimSpace(reason),
		CreatedBy: principal.UserID,
		CreatedAt: s.now(),
	}

	persisted, err := s.closedDates.AddClosedDate(ctx, closed)
	if err != nil {
		err = mapClosedDateRepoError(err)
		logger.ErrorContext(ctx, "failed to close date", "error", err, "error_kind", ErrorKind(err))
		return ClosedDate{}, err
	}

	logger.InfoContext(ctx, "date closed")
	return persisted, nil
}

// ReopenDate removes a closure marker.
func (s *CalendarService) ReopenDate(ctx context.Context, principal Principal, date time.Time) error {
	if s == nil || s.closedDates == nil {
		return fmt.Errorf("closed date repository not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "ReopenDate",
		"principal_id", principal.UserID,
		"date", date.Format(dateLayout),
	)

	if err := s.closedDates.RemoveClosedDate(ctx, timeslot.NormalizeDate(date)); err != nil {
		err = mapClosedDateRepoError(err)
		logger.ErrorContext(ctx, "failed to reopen date", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "date reopened")
	return nil
}

// ListClosedDates returns the closure markers inside [from, to] for any
// authenticated user.
func (s *CalendarService) ListClosedDates(ctx context.Context, from, to time.Time) ([]ClosedDate, error) {
	if s == nil || s.closedDates == nil {
		return nil, nil
	}
	closed, err := s.closedDates.ListClosedDates(ctx, timeslot.NormalizeDate(from), timeslot.NormalizeDate(to))
	if err != nil {
		return nil, mapClosedDateRepoError(err)
	}
	return closed, nil
}

// IsClosed implements ClosureCalendar for the availability gate.
func (s *CalendarService) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	if s == nil || s.closedDates == nil {
		return false, nil
	}
	return s.closedDates.IsClosed(ctx, timeslot.NormalizeDate(date))
}

func mapClosedDateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}
