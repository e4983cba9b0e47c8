package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/timeslot"
)

// fixedNow is a Monday. The surrounding week runs 2024-03-11 to 2024-03-17.
func fixedNow() time.Time {
	return time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return parsed
}

func clock(t *testing.T, value string) timeslot.ClockTime {
	t.Helper()
	parsed, err := timeslot.ParseClock(value)
	if err != nil {
		t.Fatalf("failed to parse clock %q: %v", value, err)
	}
	return parsed
}

func intPtr(v int) *int { return &v }

type memRequestRepo struct {
	mu        sync.Mutex
	byID      map[string]MeetingRequest
	insertErr error
	getErr    error
	updateErr error
	listErr   error
	deleteErr error
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{byID: make(map[string]MeetingRequest)}
}

func (r *memRequestRepo) InsertRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error) {
	if r.insertErr != nil {
		return MeetingRequest{}, r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[request.ID]; ok {
		return MeetingRequest{}, persistence.ErrDuplicate
	}
	request.Version = 1
	r.byID[request.ID] = request
	return request, nil
}

func (r *memRequestRepo) GetRequest(ctx context.Context, id string) (MeetingRequest, error) {
	if r.getErr != nil {
		return MeetingRequest{}, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.byID[id]
	if !ok {
		return MeetingRequest{}, persistence.ErrNotFound
	}
	return request, nil
}

func (r *memRequestRepo) UpdateRequest(ctx context.Context, request MeetingRequest) (MeetingRequest, error) {
	if r.updateErr != nil {
		return MeetingRequest{}, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[request.ID]
	if !ok {
		return MeetingRequest{}, persistence.ErrNotFound
	}
	if existing.Version != request.Version {
		return MeetingRequest{}, persistence.ErrVersionConflict
	}
	request.Version++
	r.byID[request.ID] = request
	return request, nil
}

func (r *memRequestRepo) DeleteRequest(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memRequestRepo) ListRequests(ctx context.Context, query RequestQuery) ([]MeetingRequest, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []MeetingRequest
	for _, request := range r.byID {
		if query.RequesterID != "" && request.RequesterID != query.RequesterID {
			continue
		}
		if query.DepartmentID != "" && request.DepartmentID != query.DepartmentID {
			continue
		}
		if query.ExcludeID != "" && request.ID == query.ExcludeID {
			continue
		}
		if len(query.Statuses) > 0 {
			matched := false
			for _, status := range query.Statuses {
				if request.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if query.DateFrom != nil && request.Date.Before(*query.DateFrom) {
			continue
		}
		if query.DateTo != nil && request.Date.After(*query.DateTo) {
			continue
		}
		out = append(out, request)
	}
	return out, nil
}

type departmentDirStub struct {
	departments map[string]Department
	err         error
}

func (d *departmentDirStub) GetDepartment(ctx context.Context, id string) (Department, error) {
	if d.err != nil {
		return Department{}, d.err
	}
	department, ok := d.departments[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return department, nil
}

type calendarStub struct {
	closed map[string]bool
	err    error
}

func (c *calendarStub) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.closed[date.Format("2006-01-02")], nil
}

type providerStub struct {
	mu         sync.Mutex
	allocated  []AllocationDetails
	released   []string
	allocErr   error
	releaseErr error
}

func (p *providerStub) Allocate(ctx context.Context, details AllocationDetails) (ConferenceResource, error) {
	if p.allocErr != nil {
		return ConferenceResource{}, p.allocErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocated = append(p.allocated, details)
	ref := fmt.Sprintf("conf-%d", len(p.allocated))
	return ConferenceResource{
		Ref:     ref,
		JoinURL: "https://conf.example.com/join/" + ref,
		HostURL: "https://conf.example.com/host/" + ref,
	}, nil
}

func (p *providerStub) Release(ctx context.Context, resourceRef string) error {
	if p.releaseErr != nil {
		return p.releaseErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, resourceRef)
	return nil
}

type sinkStub struct {
	mu       sync.Mutex
	failures []string
}

func (s *sinkStub) ReleaseFailed(ctx context.Context, requestID, resourceRef string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, requestID+"/"+resourceRef)
}

type bookingFixture struct {
	repo        *memRequestRepo
	departments *departmentDirStub
	calendar    *calendarStub
	provider    *providerStub
	sink        *sinkStub
	quotas      *QuotaTracker
	svc         *BookingService
}

func newBookingFixture(t *testing.T, engineeringLimit *int) *bookingFixture {
	t.Helper()

	repo := newMemRequestRepo()
	departments := &departmentDirStub{departments: map[string]Department{
		"dept-1": {ID: "dept-1", Name: "Engineering", WeeklyLimit: engineeringLimit},
		"dept-2": {ID: "dept-2", Name: "Sales", WeeklyLimit: nil},
	}}
	calendar := &calendarStub{closed: map[string]bool{}}
	provider := &providerStub{}
	sink := &sinkStub{}

	conflicts := NewConflictDetector(repo)
	quotas := NewQuotaTracker(repo, departments, fixedNow)
	gate := NewAvailabilityGate(calendar, conflicts, quotas)

	counter := 0
	svc := NewBookingService(BookingServiceConfig{
		Requests:        repo,
		Gate:            gate,
		Quotas:          quotas,
		Conflicts:       conflicts,
		Provider:        provider,
		ReleaseFailures: sink,
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("req-%d", counter)
		},
		Now:                 fixedNow,
		CollaboratorTimeout: time.Second,
	})

	return &bookingFixture{
		repo:        repo,
		departments: departments,
		calendar:    calendar,
		provider:    provider,
		sink:        sink,
		quotas:      quotas,
		svc:         svc,
	}
}

var (
	alice = Principal{UserID: "user-1", DepartmentID: "dept-1"}
	bob   = Principal{UserID: "user-2", DepartmentID: "dept-1"}
	carol = Principal{UserID: "user-3", DepartmentID: "dept-2"}
	admin = Principal{UserID: "admin-1", DepartmentID: "dept-1", IsAdmin: true}
)

func requestInput(t *testing.T, date, start, end string) RequestInput {
	t.Helper()
	return RequestInput{
		Date:          day(t, date),
		StartTime:     clock(t, start),
		EndTime:       clock(t, end),
		Title:         "Quarterly review",
		ModeratorName: "A. Moderator",
	}
}

func mustCreate(t *testing.T, f *bookingFixture, principal Principal, date, start, end string) MeetingRequest {
	t.Helper()
	request, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: principal,
		Input:     requestInput(t, date, start, end),
	})
	if err != nil {
		t.Fatalf("CreateRequest(%s %s-%s) failed: %v", date, start, end, err)
	}
	return request
}

func TestBookingService_CreateRequest_ValidatesInput(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input: RequestInput{
			Date:      day(t, "2024-03-12"),
			StartTime: clock(t, "11:00"),
			EndTime:   clock(t, "10:00"),
		},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "moderator_name", "time"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected %s validation error, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestBookingService_CreateRequest_RejectsNonFutureDate(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)

	// fixedNow is 2024-03-11; booking the same day must fail.
	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-11", "10:00", "11:00"),
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["date"]; !ok {
		t.Fatalf("expected date validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_CreateRequest_PersistsPending(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)

	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	if request.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if request.ID == "" {
		t.Fatal("expected generated id")
	}
	if request.RequesterID != alice.UserID || request.DepartmentID != alice.DepartmentID {
		t.Fatalf("expected requester attribution, got %+v", request)
	}
	if !request.CreatedAt.Equal(fixedNow()) {
		t.Fatalf("expected creation timestamp %v, got %v", fixedNow(), request.CreatedAt)
	}
	if request.Resource != nil {
		t.Fatal("pending request must not carry a resource")
	}
}

func TestBookingService_CreateRequest_RejectsUserConflict(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-12", "10:30", "11:30"),
	})

	var aErr *AdmissibilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AdmissibilityError, got %v", err)
	}
	if aErr.Reason != ReasonUserConflict {
		t.Fatalf("expected reason %q, got %q", ReasonUserConflict, aErr.Reason)
	}
}

func TestBookingService_CreateRequest_AllowsBackToBackSlots(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	// [10:00,11:00) and [11:00,12:00) share only the boundary instant.
	mustCreate(t, f, alice, "2024-03-12", "11:00", "12:00")
}

func TestBookingService_CreateRequest_AllowsSameSlotOnAnotherDate(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, alice, "2024-03-13", "10:00", "11:00")
}

func TestBookingService_CreateRequest_AllowsOverlapForDifferentUsers(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, bob, "2024-03-12", "10:00", "11:00")
}

func TestBookingService_CreateRequest_RejectsClosedDate(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	f.calendar.closed["2024-03-12"] = true

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-12", "10:00", "11:00"),
	})

	var aErr *AdmissibilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AdmissibilityError, got %v", err)
	}
	if aErr.Reason != ReasonDateClosed {
		t.Fatalf("expected reason %q, got %q", ReasonDateClosed, aErr.Reason)
	}
}

func TestBookingService_CreateRequest_ClosedDateWinsOverConflict(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(1))
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	f.calendar.closed["2024-03-12"] = true

	// Closure, conflict and quota would all fail; closure is reported.
	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-12", "10:00", "11:00"),
	})

	var aErr *AdmissibilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AdmissibilityError, got %v", err)
	}
	if aErr.Reason != ReasonDateClosed {
		t.Fatalf("expected reason %q, got %q", ReasonDateClosed, aErr.Reason)
	}
}

func TestBookingService_CreateRequest_EnforcesWeeklyQuota(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(2))
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, bob, "2024-03-13", "10:00", "11:00")

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-14", "10:00", "11:00"),
	})

	var aErr *AdmissibilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AdmissibilityError, got %v", err)
	}
	if aErr.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected reason %q, got %q", ReasonQuotaExceeded, aErr.Reason)
	}

	// The following week has its own budget.
	mustCreate(t, f, alice, "2024-03-19", "10:00", "11:00")
}

func TestBookingService_CreateRequest_ZeroQuotaBlocksWeek(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(0))

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-12", "10:00", "11:00"),
	})

	var aErr *AdmissibilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AdmissibilityError, got %v", err)
	}
	if aErr.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected reason %q, got %q", ReasonQuotaExceeded, aErr.Reason)
	}
}

func TestBookingService_CreateRequest_TerminalStatesFreeTheSlot(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(1))
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	if _, err := f.svc.Cancel(context.Background(), alice, request.ID, "plans changed"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// Same slot, same week: the cancelled request neither conflicts nor
	// counts against the quota.
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
}

func TestBookingService_CreateRequest_FailsClosedOnCalendarError(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	f.calendar.err = errors.New("calendar unavailable")

	_, err := f.svc.CreateRequest(context.Background(), CreateRequestParams{
		Principal: alice,
		Input:     requestInput(t, "2024-03-12", "10:00", "11:00"),
	})

	var cErr *CollaboratorError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if len(f.repo.byID) != 0 {
		t.Fatal("no request may be persisted when a collaborator fails")
	}
}

func TestBookingService_CreateRecurringSeries_CreatesAllDates(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)

	result, err := f.svc.CreateRecurringSeries(context.Background(), CreateRecurringParams{
		Principal: alice,
		Input: RecurringInput{
			RequestInput: requestInput(t, "2024-03-18", "10:00", "11:00"),
			Weekdays:     []time.Weekday{time.Monday, time.Wednesday},
			WeekCount:    2,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries failed: %v", err)
	}

	if len(result.Created) != 4 {
		t.Fatalf("expected 4 created requests, got %d", len(result.Created))
	}
	if len(result.Rejected) != 0 {
		t.Fatalf("expected no rejected dates, got %v", result.Rejected)
	}
}

func TestBookingService_CreateRecurringSeries_ReportsDroppedDates(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-20", "10:00", "11:00")
	f.calendar.closed["2024-03-25"] = true

	result, err := f.svc.CreateRecurringSeries(context.Background(), CreateRecurringParams{
		Principal: alice,
		Input: RecurringInput{
			RequestInput: requestInput(t, "2024-03-18", "10:00", "11:00"),
			Weekdays:     []time.Weekday{time.Monday, time.Wednesday},
			WeekCount:    2,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries failed: %v", err)
	}

	// Mon 18, Wed 20, Mon 25, Wed 27: the 20th conflicts, the 25th is closed.
	if len(result.Created) != 2 {
		t.Fatalf("expected 2 created requests, got %d", len(result.Created))
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("expected 2 rejected dates, got %v", result.Rejected)
	}

	reasons := map[string]string{}
	for _, rejected := range result.Rejected {
		reasons[rejected.Date.Format("2006-01-02")] = rejected.Reason
	}
	if reasons["2024-03-20"] != ReasonUserConflict {
		t.Errorf("expected user conflict on 2024-03-20, got %q", reasons["2024-03-20"])
	}
	if reasons["2024-03-25"] != ReasonDateClosed {
		t.Errorf("expected date closed on 2024-03-25, got %q", reasons["2024-03-25"])
	}
}

func TestBookingService_CreateRecurringSeries_AllDatesDropped(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	f.calendar.closed["2024-03-18"] = true
	f.calendar.closed["2024-03-25"] = true

	result, err := f.svc.CreateRecurringSeries(context.Background(), CreateRecurringParams{
		Principal: alice,
		Input: RecurringInput{
			RequestInput: requestInput(t, "2024-03-18", "10:00", "11:00"),
			Weekdays:     []time.Weekday{time.Monday},
			WeekCount:    2,
		},
	})
	if !errors.Is(err, ErrNoValidOccurrences) {
		t.Fatalf("expected ErrNoValidOccurrences, got %v", err)
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("expected 2 rejected dates, got %v", result.Rejected)
	}
	if len(f.repo.byID) != 0 {
		t.Fatal("no requests may be persisted when every date is dropped")
	}
}

func TestBookingService_CreateRecurringSeries_ValidatesExpansion(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)

	_, err := f.svc.CreateRecurringSeries(context.Background(), CreateRecurringParams{
		Principal: alice,
		Input: RecurringInput{
			RequestInput: requestInput(t, "2024-03-18", "10:00", "11:00"),
			Weekdays:     []time.Weekday{time.Monday},
			WeekCount:    9,
		},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["week_count"]; !ok {
		t.Fatalf("expected week_count validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_Approve_AllocatesResource(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	approved, err := f.svc.Approve(context.Background(), admin, request.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if approved.Status != StatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}
	if approved.Resource == nil || approved.Resource.Ref == "" {
		t.Fatal("expected allocated resource")
	}
	if approved.ApprovedBy != admin.UserID {
		t.Fatalf("expected approver attribution, got %q", approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil {
		t.Fatal("expected approval timestamp")
	}
	if len(f.provider.allocated) != 1 {
		t.Fatalf("expected one allocation, got %d", len(f.provider.allocated))
	}
	if f.provider.allocated[0].RequestID != request.ID {
		t.Fatalf("allocation carried wrong request id %q", f.provider.allocated[0].RequestID)
	}
}

func TestBookingService_Approve_RequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	if _, err := f.svc.Approve(context.Background(), alice, request.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBookingService_Approve_RejectsNonPending(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	if _, err := f.svc.Approve(context.Background(), admin, request.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	_, err := f.svc.Approve(context.Background(), admin, request.ID)
	var tErr *InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if tErr.From != StatusApproved {
		t.Fatalf("expected transition failure from approved, got %s", tErr.From)
	}
}

func TestBookingService_Approve_AllocationFailureStaysPending(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	f.provider.allocErr = errors.New("provider down")

	_, err := f.svc.Approve(context.Background(), admin, request.ID)
	var cErr *CollaboratorError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}

	stored, getErr := f.repo.GetRequest(context.Background(), request.ID)
	if getErr != nil {
		t.Fatalf("GetRequest failed: %v", getErr)
	}
	if stored.Status != StatusPending {
		t.Fatalf("request must stay pending after failed allocation, got %s", stored.Status)
	}
}

func TestBookingService_Reject_RecordsReason(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	rejected, err := f.svc.Reject(context.Background(), admin, request.ID, "room renovation week")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if rejected.Status != StatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
	if rejected.RejectReason != "room renovation week" {
		t.Fatalf("expected reject reason, got %q", rejected.RejectReason)
	}
	if rejected.RejectedBy != admin.UserID || rejected.RejectedAt == nil {
		t.Fatalf("expected rejection attribution, got %+v", rejected)
	}
	if len(f.provider.allocated) != 0 {
		t.Fatal("rejection must not touch the conferencing provider")
	}
}

func TestBookingService_Cancel_ReleasesApprovedResource(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	approved, err := f.svc.Approve(context.Background(), admin, request.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	cancelled, err := f.svc.Cancel(context.Background(), alice, request.ID, "")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if len(f.provider.released) != 1 || f.provider.released[0] != approved.Resource.Ref {
		t.Fatalf("expected release of %q, got %v", approved.Resource.Ref, f.provider.released)
	}
}

func TestBookingService_Cancel_CommitsWhenReleaseFails(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	if _, err := f.svc.Approve(context.Background(), admin, request.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	f.provider.releaseErr = errors.New("provider down")

	cancelled, err := f.svc.Cancel(context.Background(), alice, request.ID, "")
	if err != nil {
		t.Fatalf("Cancel must commit despite release failure, got %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if len(f.sink.failures) != 1 {
		t.Fatalf("expected one release failure report, got %v", f.sink.failures)
	}
}

func TestBookingService_Cancel_Authorization(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	if _, err := f.svc.Cancel(context.Background(), bob, request.ID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-requester, got %v", err)
	}

	// Administrators may cancel on behalf of the requester.
	if _, err := f.svc.Cancel(context.Background(), admin, request.ID, "policy"); err != nil {
		t.Fatalf("admin Cancel failed: %v", err)
	}
}

func TestBookingService_Cancel_RejectsTerminalStates(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	if _, err := f.svc.Reject(context.Background(), admin, request.ID, ""); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	_, err := f.svc.Cancel(context.Background(), alice, request.ID, "")
	var tErr *InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestBookingService_DeleteRequest_OnlyRejectedByRequester(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	var tErr *InvalidTransitionError
	if err := f.svc.DeleteRequest(context.Background(), alice, request.ID); !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError for pending delete, got %v", err)
	}

	if _, err := f.svc.Reject(context.Background(), admin, request.ID, ""); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if err := f.svc.DeleteRequest(context.Background(), admin, request.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-requester delete, got %v", err)
	}

	if err := f.svc.DeleteRequest(context.Background(), alice, request.ID); err != nil {
		t.Fatalf("DeleteRequest failed: %v", err)
	}
	if _, err := f.svc.GetRequest(context.Background(), alice, request.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBookingService_Visibility(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	if _, err := f.svc.Approve(context.Background(), admin, request.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	own, err := f.svc.GetRequest(context.Background(), alice, request.ID)
	if err != nil {
		t.Fatalf("GetRequest as requester failed: %v", err)
	}
	if own.HostWithheld || own.Resource == nil || own.Resource.HostURL == "" {
		t.Fatalf("requester must see host credentials, got %+v", own)
	}

	sameDept, err := f.svc.GetRequest(context.Background(), bob, request.ID)
	if err != nil {
		t.Fatalf("GetRequest as department member failed: %v", err)
	}
	if !sameDept.HostWithheld {
		t.Fatal("department member view must withhold host credentials")
	}
	if sameDept.Resource == nil || sameDept.Resource.JoinURL == "" {
		t.Fatal("department member must keep the join URL")
	}
	if sameDept.Resource.HostURL != "" {
		t.Fatalf("department member must not see host URL, got %q", sameDept.Resource.HostURL)
	}

	if _, err := f.svc.GetRequest(context.Background(), carol, request.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for other department, got %v", err)
	}

	full, err := f.svc.GetRequest(context.Background(), admin, request.ID)
	if err != nil {
		t.Fatalf("GetRequest as admin failed: %v", err)
	}
	if full.HostWithheld || full.Resource.HostURL == "" {
		t.Fatalf("admin must see host credentials, got %+v", full)
	}
}

func TestBookingService_ListRequests_FiltersByVisibility(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, bob, "2024-03-13", "10:00", "11:00")
	mustCreate(t, f, carol, "2024-03-14", "10:00", "11:00")

	views, err := f.svc.ListRequests(context.Background(), ListRequestsParams{Principal: alice})
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 visible requests for alice, got %d", len(views))
	}
	for _, view := range views {
		if view.RequesterID == alice.UserID && view.HostWithheld {
			t.Fatal("own request must not be withheld")
		}
		if view.RequesterID == bob.UserID && !view.HostWithheld {
			t.Fatal("colleague request must be withheld")
		}
		if view.DepartmentID == carol.DepartmentID {
			t.Fatal("other department requests must be hidden")
		}
	}

	all, err := f.svc.ListRequests(context.Background(), ListRequestsParams{Principal: admin})
	if err != nil {
		t.Fatalf("ListRequests as admin failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected admin to see all 3 requests, got %d", len(all))
	}
}

func TestBookingService_ListRequests_StatusFilter(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	first := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, alice, "2024-03-13", "10:00", "11:00")
	if _, err := f.svc.Approve(context.Background(), admin, first.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	views, err := f.svc.ListRequests(context.Background(), ListRequestsParams{
		Principal: admin,
		Statuses:  []Status{StatusApproved},
	})
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != first.ID {
		t.Fatalf("expected only the approved request, got %+v", views)
	}
}

func TestBookingService_CheckAvailability(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	availability, err := f.svc.CheckAvailability(context.Background(), alice, day(t, "2024-03-12"), clock(t, "10:30"), clock(t, "11:30"), "")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if availability.Available || availability.Reason != ReasonUserConflict {
		t.Fatalf("expected user conflict, got %+v", availability)
	}

	availability, err = f.svc.CheckAvailability(context.Background(), alice, day(t, "2024-03-12"), clock(t, "12:00"), clock(t, "13:00"), "")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !availability.Available {
		t.Fatalf("expected available slot, got %+v", availability)
	}
}

func TestBookingService_DepartmentQuota(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(3))
	mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")
	mustCreate(t, f, bob, "2024-03-13", "10:00", "11:00")

	usage, err := f.svc.DepartmentQuota(context.Background(), "dept-1", day(t, "2024-03-14"))
	if err != nil {
		t.Fatalf("DepartmentQuota failed: %v", err)
	}
	if usage.Used != 2 || usage.Remaining != 1 {
		t.Fatalf("expected used=2 remaining=1, got %+v", usage)
	}
	if !usage.WeekStart.Equal(day(t, "2024-03-11")) || !usage.WeekEnd.Equal(day(t, "2024-03-17")) {
		t.Fatalf("unexpected week bounds %v to %v", usage.WeekStart, usage.WeekEnd)
	}
}

func TestBookingService_ConcurrentUpdateDetected(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, nil)
	request := mustCreate(t, f, alice, "2024-03-12", "10:00", "11:00")

	f.repo.updateErr = persistence.ErrVersionConflict

	if _, err := f.svc.Reject(context.Background(), admin, request.ID, ""); !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
}

func TestBookingService_ConcurrentCreates_RespectQuota(t *testing.T) {
	t.Parallel()

	f := newBookingFixture(t, intPtr(5))

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			date := fmt.Sprintf("2024-03-%02d", 12+i%4)
			start := fmt.Sprintf("%02d:00", 8+i)
			end := fmt.Sprintf("%02d:00", 9+i)
			_, errs[i] = f.svc.CreateRequest(context.Background(), CreateRequestParams{
				Principal: alice,
				Input:     requestInput(t, date, start, end),
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		var aErr *AdmissibilityError
		if !errors.As(err, &aErr) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 5 {
		t.Fatalf("expected exactly 5 creations under quota 5, got %d", created)
	}
	if len(f.repo.byID) != 5 {
		t.Fatalf("expected 5 persisted requests, got %d", len(f.repo.byID))
	}
}
