package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/conference-booking/internal/persistence"
)

// DepartmentRepository captures the persistence operations needed by the service.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) (Department, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	UpdateDepartment(ctx context.Context, department Department) (Department, error)
	DeleteDepartment(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]Department, error)
}

// DepartmentService orchestrates validation, authorization, and persistence
// for departments and their weekly booking limits.
type DepartmentService struct {
	departments DepartmentRepository
	quotas      *QuotaTracker
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDepartmentService constructs a department service with the provided dependencies.
func NewDepartmentService(departments DepartmentRepository, quotas *QuotaTracker, idGenerator func() string, now func() time.Time) *DepartmentService {
	return NewDepartmentServiceWithLogger(departments, quotas, idGenerator, now, nil)
}

// NewDepartmentServiceWithLogger constructs a department service with a specified logger.
func NewDepartmentServiceWithLogger(departments DepartmentRepository, quotas *QuotaTracker, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DepartmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DepartmentService{
		departments: departments,
		quotas:      quotas,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *DepartmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DepartmentService", operation, attrs...)
}

// CreateDepartment validates input and persists a new department for administrators.
func (s *DepartmentService) CreateDepartment(ctx context.Context, params CreateDepartmentParams) (department Department, err error) {
	if s == nil {
		err = fmt.Errorf("DepartmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateDepartment",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create department", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("department_id", department.ID).InfoContext(ctx, "department created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := validateDepartmentInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	department = Department{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(params.Input.Name),
		WeeklyLimit: params.Input.WeeklyLimit,
		CreatedAt:   s.now(),
	}
	department.UpdatedAt = department.CreatedAt

	if s.departments == nil {
		return
	}

	var persisted Department
	persisted, err = s.departments.CreateDepartment(ctx, department)
	if err != nil {
		err = mapDepartmentRepoError(err)
		return
	}

	department = persisted
	return
}

// UpdateDepartment validates input and updates an existing department for
// administrators. A weekly limit change takes effect immediately for every
// subsequent admissibility check, including weeks that already hold bookings.
func (s *DepartmentService) UpdateDepartment(ctx context.Context, params UpdateDepartmentParams) (department Department, err error) {
	if s == nil {
		err = fmt.Errorf("DepartmentService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.departments == nil {
		err = fmt.Errorf("department repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateDepartment",
		"principal_id", params.Principal.UserID,
		"department_id", params.DepartmentID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update department", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("department_id", department.ID).InfoContext(ctx, "department updated")
	}()

	var existing Department
	existing, err = s.departments.GetDepartment(ctx, params.DepartmentID)
	if err != nil {
		err = mapDepartmentRepoError(err)
		return
	}

	vErr := validateDepartmentInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.WeeklyLimit = params.Input.WeeklyLimit
	updated.UpdatedAt = s.now()

	department, err = s.departments.UpdateDepartment(ctx, updated)
	if err != nil {
		err = mapDepartmentRepoError(err)
		return
	}

	if s.quotas != nil {
		s.quotas.Invalidate()
	}
	return
}

// DeleteDepartment removes an existing department when requested by an administrator.
func (s *DepartmentService) DeleteDepartment(ctx context.Context, principal Principal, departmentID string) error {
	if s == nil {
		return fmt.Errorf("DepartmentService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.departments == nil {
		return fmt.Errorf("department repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteDepartment",
		"principal_id", principal.UserID,
		"department_id", departmentID,
	)

	if err := s.departments.DeleteDepartment(ctx, departmentID); err != nil {
		err = mapDepartmentRepoError(err)
		logger.ErrorContext(ctx, "failed to delete department", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if s.quotas != nil {
		s.quotas.Invalidate()
	}
	logger.InfoContext(ctx, "department deleted")
	return nil
}

// ListDepartments returns the department catalog for any authenticated user.
func (s *DepartmentService) ListDepartments(ctx context.Context, principal Principal) (departments []Department, err error) {
	if s == nil {
		err = fmt.Errorf("DepartmentService is nil")
		return
	}
	if s.departments == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListDepartments",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list departments", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(departments)).InfoContext(ctx, "departments listed")
	}()

	var raw []Department
	raw, err = s.departments.ListDepartments(ctx)
	if err != nil {
		return
	}

	departments = make([]Department, len(raw))
	copy(departments, raw)

	sort.Slice(departments, func(i, j int) bool {
		if strings.EqualFold(departments[i].Name, departments[j].Name) {
			return departments[i].ID < departments[j].ID
		}
		return strings.ToLower(departments[i].Name) < strings.ToLower(departments[j].Name)
	})

	return
}

// GetDepartment returns a single department for any authenticated user.
func (s *DepartmentService) GetDepartment(ctx context.Context, id string) (Department, error) {
	if s == nil || s.departments == nil {
		return Department{}, fmt.Errorf("department repository not configured")
	}
	department, err := s.departments.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, mapDepartmentRepoError(err)
	}
	return department, nil
}

func validateDepartmentInput(input DepartmentInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	// A nil limit means uncapped; an explicit zero blocks booking, which is a
	// legal configuration. Only negatives are rejected.
	if input.WeeklyLimit != nil && *input.WeeklyLimit < 0 {
		vErr.add("weekly_limit", "weekly limit must be zero or more")
	}

	return vErr
}

func mapDepartmentRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("weekly_limit", "weekly limit must be zero or more")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("department_id", "department is still referenced")
		return vErr
	}
	return err
}
