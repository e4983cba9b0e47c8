package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/recurrence"
	"github.com/example/conference-booking/internal/timeslot"
)

// RequestRepository captures the persistence interactions needed by the
// booking service. UpdateRequest carries an optimistic version check.
type RequestRepository interface {
	RequestSource
	InsertRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error)
	GetRequest(ctx context.Context, id string) (MeetingRequest, error)
	UpdateRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error)
	DeleteRequest(ctx context.Context, id string) error
}

// AllocationDetails describes the approved request to the conferencing provider.
type AllocationDetails struct {
	RequestID     string
	Title         string
	ModeratorName string
	Date          time.Time
	StartTime     timeslot.ClockTime
	EndTime       timeslot.ClockTime
}

// ConferenceProvider is the external conferencing collaborator. Allocate is
// invoked only on approval; Release only when cancelling an approved request.
type ConferenceProvider interface {
	Allocate(ctx context.Context, details AllocationDetails) (ConferenceResource, error)
	Release(ctx context.Context, resourceRef string) error
}

// ReleaseFailureSink receives resource-release failures that must not block a
// cancellation. Implementations alert or queue the release for retry.
type ReleaseFailureSink interface {
	ReleaseFailed(ctx context.Context, requestID, resourceRef string, err error)
}

// BookingServiceConfig wires the booking service dependencies.
type BookingServiceConfig struct {
	Requests        RequestRepository
	Gate            *AvailabilityGate
	Quotas          *QuotaTracker
	Conflicts       *ConflictDetector
	Provider        ConferenceProvider
	ReleaseFailures ReleaseFailureSink
	IDGenerator     func() string
	Now             func() time.Time
	// CollaboratorTimeout bounds provider calls. Zero disables the bound.
	CollaboratorTimeout time.Duration
	Logger              *slog.Logger
}

// BookingService drives meeting requests through validation, admissibility and
// the approval state machine.
type BookingService struct {
	requests        RequestRepository
	gate            *AvailabilityGate
	quotas          *QuotaTracker
	conflicts       *ConflictDetector
	provider        ConferenceProvider
	releaseFailures ReleaseFailureSink
	locks           *keyedMutex
	idGenerator     func() string
	now             func() time.Time
	timeout         time.Duration
	logger          *slog.Logger
}

// NewBookingService constructs a BookingService from its configuration.
func NewBookingService(cfg BookingServiceConfig) *BookingService {
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		requests:        cfg.Requests,
		gate:            cfg.Gate,
		quotas:          cfg.Quotas,
		conflicts:       cfg.Conflicts,
		provider:        cfg.Provider,
		releaseFailures: cfg.ReleaseFailures,
		locks:           newKeyedMutex(),
		idGenerator:     idGenerator,
		now:             now,
		timeout:         cfg.CollaboratorTimeout,
		logger:          defaultLogger(cfg.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateRequest validates and admits a single-date booking request, persisting
// it as pending. The admissibility check and the insert run under keyed locks
// for the requester and the department-week, so two concurrent callers cannot
// both observe a free slot or remaining quota.
func (s *BookingService) CreateRequest(ctx context.Context, params CreateRequestParams) (MeetingRequest, error) {
	if s == nil || s.requests == nil {
		return MeetingRequest{}, fmt.Errorf("booking service not configured")
	}

	principal := params.Principal
	if principal.UserID == "" || principal.DepartmentID == "" {
		return MeetingRequest{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateRequestInput(params.Input, s.now(), vErr)
	if vErr.HasErrors() {
		return MeetingRequest{}, vErr
	}

	logger := s.loggerWith(ctx, "CreateRequest",
		"requester_id", principal.UserID,
		"department_id", principal.DepartmentID,
	)

	request, err := s.admitAndPersist(ctx, principal, params.Input, "")
	if err != nil {
		logger.ErrorContext(ctx, "request creation failed", "error", err, "error_kind", ErrorKind(err))
		return MeetingRequest{}, err
	}

	logger.InfoContext(ctx, "request created", "request_id", request.ID, "date", request.Date.Format(dateLayout))
	return request, nil
}

// CreateRecurringSeries expands a weekly series and creates one pending
// request per admissible date. Inadmissible dates are reported with their
// reasons and do not abort the rest of the series; when every date is dropped
// the whole series fails with ErrNoValidOccurrences.
func (s *BookingService) CreateRecurringSeries(ctx context.Context, params CreateRecurringParams) (RecurringResult, error) {
	if s == nil || s.requests == nil {
		return RecurringResult{}, fmt.Errorf("booking service not configured")
	}

	principal := params.Principal
	if principal.UserID == "" || principal.DepartmentID == "" {
		return RecurringResult{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateRequestInput(params.Input.RequestInput, s.now(), vErr)
	if vErr.HasErrors() {
		return RecurringResult{}, vErr
	}

	dates, err := recurrence.Expand(recurrence.Series{
		AnchorDate: params.Input.Date,
		Weekdays:   params.Input.Weekdays,
		WeekCount:  params.Input.WeekCount,
	})
	if err != nil {
		switch {
		case errors.Is(err, recurrence.ErrInvalidWeekCount):
			vErr.add("week_count", fmt.Sprintf("week count must be between 1 and %d", recurrence.MaxWeekCount))
		case errors.Is(err, recurrence.ErrNoWeekdays):
			vErr.add("weekdays", "at least one weekday is required")
		default:
			vErr.add("date", "anchor date is required")
		}
		return RecurringResult{}, vErr
	}

	logger := s.loggerWith(ctx, "CreateRecurringSeries",
		"requester_id", principal.UserID,
		"department_id", principal.DepartmentID,
		"candidate_dates", len(dates),
	)

	result := RecurringResult{}
	for _, date := range dates {
		input := params.Input.RequestInput
		input.Date = date

		request, err := s.admitAndPersist(ctx, principal, input, "")
		if err != nil {
			var aErr *AdmissibilityError
			if errors.As(err, &aErr) {
				result.Rejected = append(result.Rejected, RejectedDate{Date: date, Reason: aErr.Reason})
				continue
			}
			logger.ErrorContext(ctx, "series expansion aborted", "error", err, "error_kind", ErrorKind(err))
			return RecurringResult{}, err
		}
		result.Created = append(result.Created, request)
	}

	if len(result.Created) == 0 {
		logger.InfoContext(ctx, "series produced no admissible dates", "rejected", len(result.Rejected))
		return result, ErrNoValidOccurrences
	}

	logger.InfoContext(ctx, "series created", "created", len(result.Created), "rejected", len(result.Rejected))
	return result, nil
}

// Approve transitions a pending request to approved, allocating the
// conferencing resource first. A failed or timed-out allocation leaves the
// request pending.
func (s *BookingService) Approve(ctx context.Context, principal Principal, requestID string) (MeetingRequest, error) {
	if s == nil || s.requests == nil {
		return MeetingRequest{}, fmt.Errorf("booking service not configured")
	}
	if !principal.IsAdmin {
		return MeetingRequest{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "Approve", "request_id", requestID, "approver_id", principal.UserID)

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return MeetingRequest{}, err
	}
	if request.Status != StatusPending {
		return MeetingRequest{}, &InvalidTransitionError{From: request.Status, Attempted: StatusApproved}
	}

	resource, err := s.allocateResource(ctx, request)
	if err != nil {
		logger.ErrorContext(ctx, "resource allocation failed", "error", err, "error_kind", ErrorKind(err))
		return MeetingRequest{}, err
	}

	now := s.now()
	request.Status = StatusApproved
	request.Resource = &resource
	request.ApprovedBy = principal.UserID
	request.ApprovedAt = &now

	persisted, err := s.updateRequest(ctx, request)
	if err != nil {
		// The allocation must not leak when the transition fails to commit.
		s.releaseResource(ctx, request.ID, resource.Ref)
		logger.ErrorContext(ctx, "approval failed", "error", err, "error_kind", ErrorKind(err))
		return MeetingRequest{}, err
	}

	logger.InfoContext(ctx, "request approved", "resource_ref", resource.Ref)
	return persisted, nil
}

// Reject transitions a pending request to rejected, recording the actor and
// an optional reason.
func (s *BookingService) Reject(ctx context.Context, principal Principal, requestID, reason string) (MeetingRequest, error) {
	if s == nil || s.requests == nil {
		return MeetingRequest{}, fmt.Errorf("booking service not configured")
	}
	if !principal.IsAdmin {
		return MeetingRequest{}, ErrUnauthorized
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return MeetingRequest{}, err
	}
	if request.Status != StatusPending {
		return MeetingRequest{}, &InvalidTransitionError{From: request.Status, Attempted: StatusRejected}
	}

	now := s.now()
	request.Status = StatusRejected
	request.RejectedBy = principal.UserID
	request.RejectedAt = &now
	request.RejectReason = strings.TrimSpace(reason)

	persisted, err := s.updateRequest(ctx, request)
	if err != nil {
		return MeetingRequest{}, err
	}

	s.loggerWith(ctx, "Reject", "request_id", requestID).InfoContext(ctx, "request rejected")
	return persisted, nil
}

// Cancel transitions a pending or approved request to cancelled. The
// requester or an administrator may cancel. Releasing the conferencing
// resource of an approved request is best-effort: the cancellation commits
// even when the release fails, and the failure goes to the release sink.
func (s *BookingService) Cancel(ctx context.Context, principal Principal, requestID, reason string) (MeetingRequest, error) {
	if s == nil || s.requests == nil {
		return MeetingRequest{}, fmt.Errorf("booking service not configured")
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return MeetingRequest{}, err
	}
	if request.RequesterID != principal.UserID && !principal.IsAdmin {
		return MeetingRequest{}, ErrUnauthorized
	}
	if request.Status != StatusPending && request.Status != StatusApproved {
		return MeetingRequest{}, &InvalidTransitionError{From: request.Status, Attempted: StatusCancelled}
	}

	releaseRef := ""
	if request.Status == StatusApproved && request.Resource != nil {
		releaseRef = request.Resource.Ref
	}

	now := s.now()
	request.Status = StatusCancelled
	request.CancelledBy = principal.UserID
	request.CancelledAt = &now
	request.CancelReason = strings.TrimSpace(reason)

	persisted, err := s.updateRequest(ctx, request)
	if err != nil {
		return MeetingRequest{}, err
	}

	if releaseRef != "" {
		s.releaseResource(ctx, request.ID, releaseRef)
	}

	s.loggerWith(ctx, "Cancel", "request_id", requestID, "actor_id", principal.UserID).InfoContext(ctx, "request cancelled")
	return persisted, nil
}

// DeleteRequest hard-removes a rejected request. Only the original requester
// may delete, and only from the rejected state.
func (s *BookingService) DeleteRequest(ctx context.Context, principal Principal, requestID string) error {
	if s == nil || s.requests == nil {
		return fmt.Errorf("booking service not configured")
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != StatusRejected {
		return &InvalidTransitionError{From: request.Status, Attempted: Status("deleted")}
	}
	if request.RequesterID != principal.UserID {
		return ErrUnauthorized
	}

	if err := s.requests.DeleteRequest(ctx, requestID); err != nil {
		return mapRequestRepoError(err)
	}
	s.quotas.Invalidate()
	return nil
}

// CheckAvailability probes the gate for the principal's own slot without
// creating anything.
func (s *BookingService) CheckAvailability(ctx context.Context, principal Principal, date time.Time, start, end timeslot.ClockTime, excludeID string) (Availability, error) {
	if s == nil || s.gate == nil {
		return Availability{}, fmt.Errorf("booking service not configured")
	}
	if principal.UserID == "" || principal.DepartmentID == "" {
		return Availability{}, ErrUnauthorized
	}
	if !start.Valid() || !end.Valid() || start >= end {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return Availability{}, vErr
	}
	return s.gate.IsAdmissible(ctx, principal.UserID, principal.DepartmentID, date, start, end, excludeID)
}

// DepartmentQuota reports the weekly quota usage for the week containing date.
func (s *BookingService) DepartmentQuota(ctx context.Context, departmentID string, date time.Time) (QuotaUsage, error) {
	if s == nil || s.quotas == nil {
		return QuotaUsage{}, fmt.Errorf("booking service not configured")
	}
	return s.quotas.RemainingQuota(ctx, departmentID, date)
}

// GetRequest returns the request projected for the principal's visibility.
func (s *BookingService) GetRequest(ctx context.Context, principal Principal, requestID string) (RequestView, error) {
	if s == nil || s.requests == nil {
		return RequestView{}, fmt.Errorf("booking service not configured")
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return RequestView{}, err
	}

	view, visible := projectRequest(request, principal)
	if !visible {
		return RequestView{}, ErrUnauthorized
	}
	return view, nil
}

// ListRequests enumerates requests visible to the principal, projected per the
// visibility rules.
func (s *BookingService) ListRequests(ctx context.Context, params ListRequestsParams) ([]RequestView, error) {
	if s == nil || s.requests == nil {
		return nil, fmt.Errorf("booking service not configured")
	}

	query := RequestQuery{
		RequesterID:  params.RequesterID,
		DepartmentID: params.DepartmentID,
		Statuses:     params.Statuses,
		DateFrom:     params.DateFrom,
		DateTo:       params.DateTo,
	}
	if !params.Principal.IsAdmin && query.RequesterID == "" && query.DepartmentID == "" {
		// Non-admins without an explicit filter see their own department.
		query.DepartmentID = params.Principal.DepartmentID
	}

	requests, err := s.requests.ListRequests(ctx, query)
	if err != nil {
		return nil, mapRequestRepoError(err)
	}

	views := make([]RequestView, 0, len(requests))
	for _, request := range requests {
		view, visible := projectRequest(request, params.Principal)
		if !visible {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

const dateLayout = "2006-01-02"

func (s *BookingService) admitAndPersist(ctx context.Context, principal Principal, input RequestInput, excludeID string) (MeetingRequest, error) {
	date := timeslot.NormalizeDate(input.Date)
	weekStart, _ := timeslot.WeekBounds(date)

	unlock := s.locks.Lock(
		"user:"+principal.UserID,
		"dept:"+principal.DepartmentID+":"+weekStart.Format(dateLayout),
	)
	defer unlock()

	availability, err := s.gate.IsAdmissible(ctx, principal.UserID, principal.DepartmentID, date, input.StartTime, input.EndTime, excludeID)
	if err != nil {
		return MeetingRequest{}, err
	}
	if !availability.Available {
		return MeetingRequest{}, &AdmissibilityError{Date: date.Format(dateLayout), Reason: availability.Reason}
	}

	now := s.now()
	request := MeetingRequest{
		ID:                    s.idGenerator(),
		RequesterID:           principal.UserID,
		DepartmentID:          principal.DepartmentID,
		Date:                  date,
		StartTime:             input.StartTime,
		EndTime:               input.EndTime,
		Title:                 strings.TrimSpace(input.Title),
		ModeratorName:         strings.TrimSpace(input.ModeratorName),
		Description:           input.Description,
		EstimatedParticipants: input.EstimatedParticipants,
		Status:                StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	persisted, err := s.requests.InsertRequest(ctx, request)
	if err != nil {
		return MeetingRequest{}, mapRequestRepoError(err)
	}

	s.quotas.Invalidate()
	return persisted, nil
}

func (s *BookingService) getRequest(ctx context.Context, requestID string) (MeetingRequest, error) {
	request, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return MeetingRequest{}, mapRequestRepoError(err)
	}
	return request, nil
}

func (s *BookingService) updateRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error) {
	request.UpdatedAt = s.now()
	persisted, err := s.requests.UpdateRequest(ctx, request)
	if err != nil {
		return MeetingRequest{}, mapRequestRepoError(err)
	}
	s.quotas.Invalidate()
	return persisted, nil
}

func (s *BookingService) allocateResource(ctx context.Context, request MeetingRequest) (ConferenceResource, error) {
	if s.provider == nil {
		return ConferenceResource{}, collaboratorFailure("conferencing provider", fmt.Errorf("not configured"))
	}

	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()

	resource, err := s.provider.Allocate(callCtx, AllocationDetails{
		RequestID:     request.ID,
		Title:         request.Title,
		ModeratorName: request.ModeratorName,
		Date:          request.Date,
		StartTime:     request.StartTime,
		EndTime:       request.EndTime,
	})
	if err != nil {
		return ConferenceResource{}, collaboratorFailure("conferencing provider", err)
	}
	return resource, nil
}

// releaseResource is best-effort: failures are handed to the sink and logged,
// never returned.
func (s *BookingService) releaseResource(ctx context.Context, requestID, resourceRef string) {
	if s.provider == nil || resourceRef == "" {
		return
	}

	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()

	if err := s.provider.Release(callCtx, resourceRef); err != nil {
		s.loggerWith(ctx, "releaseResource", "request_id", requestID, "resource_ref", resourceRef).
			WarnContext(ctx, "resource release failed", "error", err)
		if s.releaseFailures != nil {
			s.releaseFailures.ReleaseFailed(ctx, requestID, resourceRef, err)
		}
	}
}

func (s *BookingService) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// projectRequest applies the read-time visibility rule. Administrators see
// everything; a requester sees their own requests in full; same-department
// members see the request with host credentials withheld; everyone else sees
// nothing.
func projectRequest(request MeetingRequest, principal Principal) (RequestView, bool) {
	if principal.IsAdmin || request.RequesterID == principal.UserID {
		return RequestView{MeetingRequest: request}, true
	}
	if request.DepartmentID != principal.DepartmentID {
		return RequestView{}, false
	}

	view := RequestView{MeetingRequest: request, HostWithheld: true}
	if request.Resource != nil {
		redacted := *request.Resource
		redacted.HostURL = ""
		view.Resource = &redacted
	}
	return view, true
}

func validateRequestInput(input RequestInput, now time.Time, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if strings.TrimSpace(input.ModeratorName) == "" {
		vErr.add("moderator_name", "moderator name is required")
	}

	if input.Date.IsZero() {
		vErr.add("date", "date is required")
	} else if !timeslot.NormalizeDate(input.Date).After(timeslot.NormalizeDate(now)) {
		vErr.add("date", "date must be in the future")
	}

	if !input.StartTime.Valid() || !input.EndTime.Valid() {
		vErr.add("time", "times must fall within a single day")
	} else if input.StartTime >= input.EndTime {
		vErr.add("time", "start must be before end")
	}

	if input.EstimatedParticipants != nil && *input.EstimatedParticipants < 0 {
		vErr.add("estimated_participants", "estimated participants must be zero or more")
	}
}

func mapRequestRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrVersionConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("department_id", "related records are missing")
		return vErr
	}
	return collaboratorFailure("request repository", err)
}
