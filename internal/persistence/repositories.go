package persistence

import "context"
import "time"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// DepartmentRepository exposes CRUD operations for departments.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) error
	UpdateDepartment(ctx context.Context, department Department) error
	GetDepartment(ctx context.Context, id string) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	DeleteDepartment(ctx context.Context, id string) error
}

// RequestFilter narrows meeting request queries. Filters compose from
// validated primitives; the repository assembles the SQL from them so callers
// never build query strings.
type RequestFilter struct {
	RequesterID  string
	DepartmentID string
	Statuses     []string
	DateFrom     *time.Time
	DateTo       *time.Time
	ExcludeID    string
}

// MeetingRequestRepository stores booking requests.
//
// UpdateRequest performs an optimistic version check: the stored row is only
// replaced when its version matches the one carried by the request, and the
// version is incremented on success. A mismatch yields ErrVersionConflict.
type MeetingRequestRepository interface {
	InsertRequest(ctx context.Context, request MeetingRequest) error
	GetRequest(ctx context.Context, id string) (MeetingRequest, error)
	UpdateRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]MeetingRequest, error)
}

// ClosedDateRepository stores the administrative closure calendar.
type ClosedDateRepository interface {
	AddClosedDate(ctx context.Context, closed ClosedDate) error
	RemoveClosedDate(ctx context.Context, date time.Time) error
	IsClosed(ctx context.Context, date time.Time) (bool, error)
	ListClosedDates(ctx context.Context, from, to time.Time) ([]ClosedDate, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
