package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type departmentRepoStub struct {
	department Department
	created    Department
	updated    Department
	err        error
	deleteErr  error
	list       []Department
}

func (s *departmentRepoStub) CreateDepartment(ctx context.Context, department Department) (Department, error) {
	if s.err != nil {
		return Department{}, s.err
	}
	s.created = department
	return department, nil
}

func (s *departmentRepoStub) GetDepartment(ctx context.Context, id string) (Department, error) {
	if s.err != nil {
		return Department{}, s.err
	}
	if s.department.ID == "" {
		return Department{}, ErrNotFound
	}
	return s.department, nil
}

func (s *departmentRepoStub) UpdateDepartment(ctx context.Context, department Department) (Department, error) {
	if s.err != nil {
		return Department{}, s.err
	}
	s.updated = department
	return department, nil
}

func (s *departmentRepoStub) DeleteDepartment(ctx context.Context, id string) error {
	return s.deleteErr
}

func (s *departmentRepoStub) ListDepartments(ctx context.Context) ([]Department, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Department, len(s.list))
	copy(out, s.list)
	return out, nil
}

func TestDepartmentService_CreateDepartment(t *testing.T) {
	t.Parallel()

	repo := &departmentRepoStub{}
	svc := NewDepartmentService(repo, nil, func() string { return "dept-1" }, fixedNow)

	department, err := svc.CreateDepartment(context.Background(), CreateDepartmentParams{
		Principal: admin,
		Input:     DepartmentInput{Name: "  Engineering  ", WeeklyLimit: intPtr(5)},
	})
	if err != nil {
		t.Fatalf("CreateDepartment failed: %v", err)
	}

	if department.ID != "dept-1" || department.Name != "Engineering" {
		t.Fatalf("unexpected department %+v", department)
	}
	if department.WeeklyLimit == nil || *department.WeeklyLimit != 5 {
		t.Fatalf("expected weekly limit 5, got %v", department.WeeklyLimit)
	}
}

func TestDepartmentService_CreateDepartment_RequiresAdmin(t *testing.T) {
	t.Parallel()

	svc := NewDepartmentService(&departmentRepoStub{}, nil, nil, fixedNow)

	_, err := svc.CreateDepartment(context.Background(), CreateDepartmentParams{
		Principal: alice,
		Input:     DepartmentInput{Name: "Engineering"},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestDepartmentService_CreateDepartment_ValidatesLimit(t *testing.T) {
	t.Parallel()

	svc := NewDepartmentService(&departmentRepoStub{}, nil, nil, fixedNow)

	_, err := svc.CreateDepartment(context.Background(), CreateDepartmentParams{
		Principal: admin,
		Input:     DepartmentInput{Name: "Engineering", WeeklyLimit: intPtr(-1)},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["weekly_limit"]; !ok {
		t.Fatalf("expected weekly_limit validation error, got %v", vErr.FieldErrors)
	}
}

func TestDepartmentService_CreateDepartment_AllowsZeroAndNilLimits(t *testing.T) {
	t.Parallel()

	repo := &departmentRepoStub{}
	svc := NewDepartmentService(repo, nil, func() string { return "dept-1" }, fixedNow)

	if _, err := svc.CreateDepartment(context.Background(), CreateDepartmentParams{
		Principal: admin,
		Input:     DepartmentInput{Name: "Blocked", WeeklyLimit: intPtr(0)},
	}); err != nil {
		t.Fatalf("zero limit must be accepted, got %v", err)
	}

	if _, err := svc.CreateDepartment(context.Background(), CreateDepartmentParams{
		Principal: admin,
		Input:     DepartmentInput{Name: "Uncapped"},
	}); err != nil {
		t.Fatalf("nil limit must be accepted, got %v", err)
	}
}

func TestDepartmentService_UpdateDepartment_InvalidatesQuotaCache(t *testing.T) {
	t.Parallel()

	requests := newMemRequestRepo()
	directory := &departmentDirStub{departments: map[string]Department{
		"dept-1": {ID: "dept-1", WeeklyLimit: intPtr(5)},
	}}
	quotas := NewQuotaTracker(requests, directory, fixedNow)

	// Warm the cache for the week.
	if _, err := quotas.RemainingQuota(context.Background(), "dept-1", day(t, "2024-03-13")); err != nil {
		t.Fatalf("RemainingQuota failed: %v", err)
	}

	repo := &departmentRepoStub{department: Department{ID: "dept-1", Name: "Engineering", WeeklyLimit: intPtr(5), CreatedAt: fixedNow()}}
	svc := NewDepartmentService(repo, quotas, nil, fixedNow)

	updated, err := svc.UpdateDepartment(context.Background(), UpdateDepartmentParams{
		Principal:    admin,
		DepartmentID: "dept-1",
		Input:        DepartmentInput{Name: "Engineering", WeeklyLimit: intPtr(1)},
	})
	if err != nil {
		t.Fatalf("UpdateDepartment failed: %v", err)
	}
	if updated.WeeklyLimit == nil || *updated.WeeklyLimit != 1 {
		t.Fatalf("expected limit 1, got %v", updated.WeeklyLimit)
	}
	if !updated.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("expected update timestamp, got %v", updated.UpdatedAt)
	}

	seedRequest(t, requests, "r1", "user-1", "dept-1", "2024-03-12", StatusPending)
	usage, err := quotas.RemainingQuota(context.Background(), "dept-1", day(t, "2024-03-13"))
	if err != nil {
		t.Fatalf("RemainingQuota failed: %v", err)
	}
	if usage.Used != 1 {
		t.Fatalf("expected cache invalidation to surface used=1, got %d", usage.Used)
	}
}

func TestDepartmentService_UpdateDepartment_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewDepartmentService(&departmentRepoStub{}, nil, nil, fixedNow)

	_, err := svc.UpdateDepartment(context.Background(), UpdateDepartmentParams{
		Principal:    admin,
		DepartmentID: "ghost",
		Input:        DepartmentInput{Name: "Ghost"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDepartmentService_ListDepartments_SortsByName(t *testing.T) {
	t.Parallel()

	repo := &departmentRepoStub{list: []Department{
		{ID: "d2", Name: "sales"},
		{ID: "d1", Name: "Engineering"},
	}}
	svc := NewDepartmentService(repo, nil, nil, fixedNow)

	departments, err := svc.ListDepartments(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListDepartments failed: %v", err)
	}
	if len(departments) != 2 || departments[0].Name != "Engineering" {
		t.Fatalf("expected case-insensitive name order, got %+v", departments)
	}
}

func TestDepartmentService_DeleteDepartment_RequiresAdmin(t *testing.T) {
	t.Parallel()

	svc := NewDepartmentService(&departmentRepoStub{}, nil, nil, time.Now)

	if err := svc.DeleteDepartment(context.Background(), alice, "dept-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
