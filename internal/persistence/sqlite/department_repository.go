package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/conference-booking/internal/persistence"
)

// DepartmentRepository implements persistence.DepartmentRepository using SQLite.
type DepartmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewDepartmentRepository creates a new SQLite department repository.
func NewDepartmentRepository(pool *ConnectionPool) *DepartmentRepository {
	return &DepartmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const departmentColumns = `id, name, weekly_limit, created_at, updated_at`

// CreateDepartment inserts a new department.
func (r *DepartmentRepository) CreateDepartment(ctx context.Context, department persistence.Department) error {
	if department.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		`INSERT INTO departments (`+departmentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		department.ID,
		department.Name,
		nullInt(department.WeeklyLimit),
		formatTime(department.CreatedAt),
		formatTime(department.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateDepartment replaces an existing department row.
func (r *DepartmentRepository) UpdateDepartment(ctx context.Context, department persistence.Department) error {
	if department.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE departments SET name = ?, weekly_limit = ?, updated_at = ? WHERE id = ?`,
		department.Name,
		nullInt(department.WeeklyLimit),
		formatTime(department.UpdatedAt),
		department.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetDepartment retrieves a department by ID.
func (r *DepartmentRepository) GetDepartment(ctx context.Context, id string) (persistence.Department, error) {
	if id == "" {
		return persistence.Department{}, persistence.ErrNotFound
	}

	department, err := scanDepartment(r.helper.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Department{}, persistence.ErrNotFound
		}
		return persistence.Department{}, r.mapper.MapError(err)
	}
	return department, nil
}

// ListDepartments returns every department ordered by name.
func (r *DepartmentRepository) ListDepartments(ctx context.Context) ([]persistence.Department, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var departments []persistence.Department
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		departments = append(departments, department)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return departments, nil
}

// DeleteDepartment removes a department by ID. The foreign keys on users and
// meeting requests block deletion while the department is still referenced.
func (r *DepartmentRepository) DeleteDepartment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM departments WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanDepartment(row rowScanner) (persistence.Department, error) {
	var department persistence.Department
	var weeklyLimit sql.NullInt64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&department.ID,
		&department.Name,
		&weeklyLimit,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Department{}, err
	}

	department.WeeklyLimit = intPtr(weeklyLimit)
	if department.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.Department{}, err
	}
	if department.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.Department{}, err
	}
	return department, nil
}
