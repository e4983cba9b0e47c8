package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/timeslot"
)

var (
	userCounter       uint64
	departmentCounter uint64
	requestCounter    uint64
	sessionCounter    uint64
	closedDateCounter uint64
)

// referenceTime falls on a Monday so week-aligned quota fixtures line up with
// the start of an accounting week by default.
var referenceTime = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	DepartmentID string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		DepartmentID: "dept-001",
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserDepartment assigns the user to a department.
func WithUserDepartment(departmentID string) UserOption {
	return func(f *UserFixture) {
		f.DepartmentID = departmentID
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserDisabled marks the account as disabled for login.
func WithUserDisabled() UserOption {
	return func(f *UserFixture) {
		f.Disabled = true
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		DepartmentID: f.DepartmentID,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Credentials returns the fixture as an application.UserCredentials value.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
	}
}

// Persistence returns the fixture as a persistence.User row.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		DepartmentID: f.DepartmentID,
		IsAdmin:      f.IsAdmin,
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Principal returns the principal the user would resolve to after login.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{
		UserID:       f.ID,
		DepartmentID: f.DepartmentID,
		IsAdmin:      f.IsAdmin,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		DepartmentID: f.DepartmentID,
		IsAdmin:      f.IsAdmin,
	}
}

// -------------------------- Department fixtures ---------------------------

// DepartmentFixture represents a deterministic department record.
type DepartmentFixture struct {
	ID          string
	Name        string
	WeeklyLimit *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DepartmentOption configures the generated department fixture.
type DepartmentOption func(*DepartmentFixture)

// NewDepartmentFixture returns a deterministic department fixture. Departments
// are uncapped unless WithDepartmentWeeklyLimit is applied.
func NewDepartmentFixture(opts ...DepartmentOption) DepartmentFixture {
	idx := atomic.AddUint64(&departmentCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := DepartmentFixture{
		ID:        fmt.Sprintf("dept-%03d", idx),
		Name:      fmt.Sprintf("Department %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDepartmentID overrides the generated department ID.
func WithDepartmentID(id string) DepartmentOption {
	return func(f *DepartmentFixture) {
		f.ID = id
	}
}

// WithDepartmentName overrides the generated department name.
func WithDepartmentName(name string) DepartmentOption {
	return func(f *DepartmentFixture) {
		f.Name = name
	}
}

// WithDepartmentWeeklyLimit caps the department's weekly booking volume. An
// explicit zero blocks all bookings for the week.
func WithDepartmentWeeklyLimit(limit int) DepartmentOption {
	return func(f *DepartmentFixture) {
		f.WeeklyLimit = &limit
	}
}

// Application returns the fixture as an application.Department value.
func (f DepartmentFixture) Application() application.Department {
	return application.Department{
		ID:          f.ID,
		Name:        f.Name,
		WeeklyLimit: f.WeeklyLimit,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Department row.
func (f DepartmentFixture) Persistence() persistence.Department {
	return persistence.Department{
		ID:          f.ID,
		Name:        f.Name,
		WeeklyLimit: f.WeeklyLimit,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ---------------------------- Request fixtures ----------------------------

// RequestFixture represents a deterministic meeting request. The defaults
// describe a pending one-hour morning slot on the reference Monday.
type RequestFixture struct {
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
	Status                application.Status
	Resource              *application.ConferenceResource
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

// RequestOption configures the generated request fixture.
type RequestOption func(*RequestFixture)

// NewRequestFixture returns a deterministic meeting request fixture. Each call
// shifts the slot by an hour so sibling fixtures never overlap by accident.
func NewRequestFixture(opts ...RequestOption) RequestFixture {
	idx := atomic.AddUint64(&requestCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	start := timeslot.ClockTime(9*60) + timeslot.ClockTime(idx%8)*60
	fixture := RequestFixture{
		ID:            fmt.Sprintf("req-%03d", idx),
		RequesterID:   "user-001",
		DepartmentID:  "dept-001",
		Date:          timeslot.NormalizeDate(referenceTime),
		StartTime:     start,
		EndTime:       start + 60,
		Title:         fmt.Sprintf("Meeting %03d", idx),
		ModeratorName: "Moderator",
		Status:        application.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
		Version:       1,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRequestID overrides the generated request ID.
func WithRequestID(id string) RequestOption {
	return func(f *RequestFixture) {
		f.ID = id
	}
}

// WithRequester sets the requester and department the request belongs to.
func WithRequester(userID, departmentID string) RequestOption {
	return func(f *RequestFixture) {
		f.RequesterID = userID
		f.DepartmentID = departmentID
	}
}

// WithRequestDate places the request on the given calendar date.
func WithRequestDate(date time.Time) RequestOption {
	return func(f *RequestFixture) {
		f.Date = timeslot.NormalizeDate(date)
	}
}

// WithRequestWindow sets the booking window from "HH:MM" bounds. Invalid
// bounds panic; fixtures are always built from literals.
func WithRequestWindow(start, end string) RequestOption {
	return func(f *RequestFixture) {
		f.StartTime = mustClock(start)
		f.EndTime = mustClock(end)
	}
}

// WithRequestTitle overrides the generated title.
func WithRequestTitle(title string) RequestOption {
	return func(f *RequestFixture) {
		f.Title = title
	}
}

// WithRequestStatus forces the request into the given lifecycle state.
func WithRequestStatus(status application.Status) RequestOption {
	return func(f *RequestFixture) {
		f.Status = status
	}
}

// WithRequestApproved marks the request approved with an allocated resource.
func WithRequestApproved(approverID string, resource application.ConferenceResource, at time.Time) RequestOption {
	return func(f *RequestFixture) {
		f.Status = application.StatusApproved
		f.ApprovedBy = approverID
		f.ApprovedAt = &at
		f.Resource = &resource
	}
}

// WithRequestRejected marks the request rejected with the given reason.
func WithRequestRejected(approverID, reason string, at time.Time) RequestOption {
	return func(f *RequestFixture) {
		f.Status = application.StatusRejected
		f.RejectedBy = approverID
		f.RejectedAt = &at
		f.RejectReason = reason
	}
}

// WithRequestVersion sets the optimistic concurrency version.
func WithRequestVersion(version int64) RequestOption {
	return func(f *RequestFixture) {
		f.Version = version
	}
}

// Application returns the fixture as an application.MeetingRequest value.
func (f RequestFixture) Application() application.MeetingRequest {
	return application.MeetingRequest{
		ID:                    f.ID,
		RequesterID:           f.RequesterID,
		DepartmentID:          f.DepartmentID,
		Date:                  f.Date,
		StartTime:             f.StartTime,
		EndTime:               f.EndTime,
		Title:                 f.Title,
		ModeratorName:         f.ModeratorName,
		Description:           f.Description,
		EstimatedParticipants: f.EstimatedParticipants,
		Status:                f.Status,
		Resource:              f.Resource,
		ApprovedBy:            f.ApprovedBy,
		ApprovedAt:            f.ApprovedAt,
		RejectedBy:            f.RejectedBy,
		RejectedAt:            f.RejectedAt,
		RejectReason:          f.RejectReason,
		CancelledBy:           f.CancelledBy,
		CancelledAt:           f.CancelledAt,
		CancelReason:          f.CancelReason,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
		Version:               f.Version,
	}
}

// Persistence returns the fixture as a persistence.MeetingRequest row.
func (f RequestFixture) Persistence() persistence.MeetingRequest {
	row := persistence.MeetingRequest{
		ID:                    f.ID,
		RequesterID:           f.RequesterID,
		DepartmentID:          f.DepartmentID,
		Date:                  f.Date,
		StartTime:             f.StartTime,
		EndTime:               f.EndTime,
		Title:                 f.Title,
		ModeratorName:         f.ModeratorName,
		Description:           optionalString(f.Description),
		EstimatedParticipants: f.EstimatedParticipants,
		Status:                string(f.Status),
		ApprovedBy:            optionalString(f.ApprovedBy),
		ApprovedAt:            f.ApprovedAt,
		RejectedBy:            optionalString(f.RejectedBy),
		RejectedAt:            f.RejectedAt,
		RejectReason:          optionalString(f.RejectReason),
		CancelledBy:           optionalString(f.CancelledBy),
		CancelledAt:           f.CancelledAt,
		CancelReason:          optionalString(f.CancelReason),
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
		Version:               f.Version,
	}
	if f.Resource != nil {
		row.ResourceRef = optionalString(f.Resource.Ref)
		row.JoinURL = optionalString(f.Resource.JoinURL)
		row.HostURL = optionalString(f.Resource.HostURL)
	}
	return row
}

// Input returns the caller-facing input that would produce this request.
func (f RequestFixture) Input() application.RequestInput {
	return application.RequestInput{
		Date:                  f.Date,
		StartTime:             f.StartTime,
		EndTime:               f.EndTime,
		Title:                 f.Title,
		ModeratorName:         f.ModeratorName,
		Description:           f.Description,
		EstimatedParticipants: f.EstimatedParticipants,
	}
}

// -------------------------- Closed date fixtures --------------------------

// ClosedDateFixture represents an administrative closure entry.
type ClosedDateFixture struct {
	Date      time.Time
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// ClosedDateOption configures the generated closed date fixture.
type ClosedDateOption func(*ClosedDateFixture)

// NewClosedDateFixture returns a closure fixture. Each call closes the next
// calendar day after the reference date.
func NewClosedDateFixture(opts ...ClosedDateOption) ClosedDateFixture {
	idx := atomic.AddUint64(&closedDateCounter, 1)
	fixture := ClosedDateFixture{
		Date:      timeslot.NormalizeDate(referenceTime).AddDate(0, 0, int(idx)),
		Reason:    "maintenance",
		CreatedBy: "admin-001",
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithClosedDate overrides the closed calendar date.
func WithClosedDate(date time.Time) ClosedDateOption {
	return func(f *ClosedDateFixture) {
		f.Date = timeslot.NormalizeDate(date)
	}
}

// WithClosedReason overrides the closure reason.
func WithClosedReason(reason string) ClosedDateOption {
	return func(f *ClosedDateFixture) {
		f.Reason = reason
	}
}

// Application returns the fixture as an application.ClosedDate value.
func (f ClosedDateFixture) Application() application.ClosedDate {
	return application.ClosedDate{
		Date:      f.Date,
		Reason:    f.Reason,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.ClosedDate row.
func (f ClosedDateFixture) Persistence() persistence.ClosedDate {
	return persistence.ClosedDate{
		Date:      f.Date,
		Reason:    f.Reason,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents an issued authentication session.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session fixture valid for 24 hours from the
// reference time.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      "user-001",
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: "test-agent",
		ExpiresAt:   referenceTime.Add(24 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUser binds the session to a user.
func WithSessionUser(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiry sets the expiry timestamp.
func WithSessionExpiry(at time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = at
	}
}

// WithSessionRevoked marks the session revoked at the given time.
func WithSessionRevoked(at time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = &at
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   f.RevokedAt,
	}
}

// Persistence returns the fixture as a persistence.Session row.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   f.RevokedAt,
	}
}

// ------------------------------- Helpers ----------------------------------

func mustClock(value string) timeslot.ClockTime {
	clock, err := timeslot.ParseClock(value)
	if err != nil {
		panic(err)
	}
	return clock
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
