package persistence

import (
	"time"

	"github.com/example/conference-booking/internal/timeslot"
)

// User represents an employee account in the booking domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	DepartmentID string
	IsAdmin      bool
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Department represents an organizational unit whose weekly booking volume is
// capped. WeeklyLimit nil means unlimited; an explicit zero blocks all
// bookings for the week.
type Department struct {
	ID          string
	Name        string
	WeeklyLimit *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MeetingRequest is the stored form of a booking request. Version supports
// optimistic concurrency on status transitions.
type MeetingRequest struct {
	ID                    string
	RequesterID           string
	DepartmentID          string
	Date                  time.Time
	StartTime             timeslot.ClockTime
	EndTime               timeslot.ClockTime
	Title                 string
	ModeratorName         string
	Description           *string
	EstimatedParticipants *int
	Status                string
	ResourceRef           *string
	JoinURL               *string
	HostURL               *string
	ApprovedBy            *string
	ApprovedAt            *time.Time
	RejectedBy            *string
	RejectedAt            *time.Time
	RejectReason          *string
	CancelledBy           *string
	CancelledAt           *time.Time
	CancelReason          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int64
}

// ClosedDate marks a calendar date as administratively closed for booking.
type ClosedDate struct {
	Date      time.Time
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// Session represents an authentication session persisted for a user.
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
