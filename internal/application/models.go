package application

import (
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// Principal represents the authenticated user invoking a service method. The
// presentation layer resolves it from the session and passes it explicitly;
// services never read ambient identity state.
type Principal struct {
	UserID       string
	DepartmentID string
	IsAdmin      bool
}

// Status enumerates the lifecycle states of a meeting request.
type Status string

const (
	// StatusPending is the initial state of every created request.
	StatusPending Status = "pending"
	// StatusApproved marks a request with an allocated conferencing resource.
	StatusApproved Status = "approved"
	// StatusRejected is terminal; only rejected requests may be hard-deleted.
	StatusRejected Status = "rejected"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

// ReservesSlot reports whether a request in this status consumes the
// requester's time slot and the department's weekly quota.
func (s Status) ReservesSlot() bool {
	return s == StatusPending || s == StatusApproved
}

// Valid reports whether the value is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// RequestInput captures caller provided booking fields for a single date.
type RequestInput struct {
	Date                  time.Time
	StartTime             timeslot.ClockTime
	EndTime               timeslot.ClockTime
	Title                 string
	ModeratorName         string
	Description           string
	EstimatedParticipants *int
}

// MeetingRequest represents a booking request exposed by the application services.
type MeetingRequest struct {
	ID                    string
	RequesterID           string
	DepartmentID          string
	Date                  time.Time
	StartTime             timeslot.ClockTime
	EndTime               timeslot.ClockTime
	Title                 string
	ModeratorName         string
	Description           string
	EstimatedParticipants *int
	Status                Status
	Resource              *ConferenceResource
	ApprovedBy            string
	ApprovedAt            *time.Time
	RejectedBy            string
	RejectedAt            *time.Time
	RejectReason          string
	CancelledBy           string
	CancelledAt           *time.Time
	CancelReason          string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int64
}

// ConferenceResource holds the external conferencing allocation bound to an
// approved request. HostURL carries administrative credentials and is subject
// to the visibility rules.
type ConferenceResource struct {
	Ref     string
	JoinURL string
	HostURL string
}

// RequestView is the read-time projection of a request for a given principal.
// HostWithheld reports that host credentials were removed because the viewer
// is a same-department member but not the requester.
type RequestView struct {
	MeetingRequest
	HostWithheld bool
}

// CreateRequestParams wraps the data required to create a single booking request.
type CreateRequestParams struct {
	Principal Principal
	Input     RequestInput
}

// RecurringInput extends a request template with the weekly expansion settings.
type RecurringInput struct {
	RequestInput
	Weekdays  []time.Weekday
	WeekCount int
}

// CreateRecurringParams wraps the data required to create a recurring series.
type CreateRecurringParams struct {
	Principal Principal
	Input     RecurringInput
}

// RejectedDate records a series occurrence that failed admissibility, with the
// reason callers present to the user.
type RejectedDate struct {
	Date   time.Time
	Reason string
}

// RecurringResult reports the outcome of a series expansion: the requests that
// were created and the dates that were dropped.
type RecurringResult struct {
	Created  []MeetingRequest
	Rejected []RejectedDate
}

// QuotaUsage reports a department's weekly quota consumption for the week
// containing a reference date. Limit nil means the department is uncapped.
type QuotaUsage struct {
	DepartmentID string
	WeekStart    time.Time
	WeekEnd      time.Time
	Limit        *int
	Used         int
	Remaining    int
}

// Unlimited reports whether no weekly cap applies.
func (q QuotaUsage) Unlimited() bool {
	return q.Limit == nil
}

// Availability is the outcome of an admissibility probe for a candidate slot.
type Availability struct {
	Available bool
	Reason    string
}

// ListRequestsParams narrows request listings.
type ListRequestsParams struct {
	Principal    Principal
	DepartmentID string
	RequesterID  string
	Statuses     []Status
	DateFrom     *time.Time
	DateTo       *time.Time
}

// DepartmentInput captures caller provided department fields. WeeklyLimit nil
// leaves the department uncapped; an explicit zero blocks booking entirely.
type DepartmentInput struct {
	Name        string
	WeeklyLimit *int
}

// Department represents an organizational unit exposed by the services.
type Department struct {
	ID          string
	Name        string
	WeeklyLimit *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateDepartmentParams wraps the data required to create a department.
type CreateDepartmentParams struct {
	Principal Principal
	Input     DepartmentInput
}

// UpdateDepartmentParams wraps the data required to update a department.
type UpdateDepartmentParams struct {
	Principal    Principal
	DepartmentID string
	Input        DepartmentInput
}

// ClosedDate marks a calendar date as administratively closed for booking.
type ClosedDate struct {
	Date      time.Time
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email        string
	DisplayName  string
	DepartmentID string
	IsAdmin      bool
}

// User represents an employee account exposed by the application services.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	DepartmentID string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to rotate a session token.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of a session refresh.
type RefreshSessionResult struct {
	Session Session
}
