package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/persistence/sqlite/migration"
	"github.com/example/conference-booking/internal/timeslot"
)

var testClock = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func openTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := NewConnectionPool(fmt.Sprintf("file:%s?mode=memory&cache=private", t.Name()))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := migration.NewRunner(pool.DB()).Apply(context.Background()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return pool
}

func seedDepartment(t *testing.T, pool *ConnectionPool, id string, weeklyLimit *int) {
	t.Helper()
	repo := NewDepartmentRepository(pool)
	err := repo.CreateDepartment(context.Background(), persistence.Department{
		ID:          id,
		Name:        "Department " + id,
		WeeklyLimit: weeklyLimit,
		CreatedAt:   testClock,
		UpdatedAt:   testClock,
	})
	if err != nil {
		t.Fatalf("failed to seed department %s: %v", id, err)
	}
}

func seedUser(t *testing.T, pool *ConnectionPool, id, departmentID string) {
	t.Helper()
	repo := NewUserRepository(pool)
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  "User " + id,
		DepartmentID: departmentID,
		CreatedAt:    testClock,
		UpdatedAt:    testClock,
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
}

func testRequest(id, requesterID, departmentID, date string) persistence.MeetingRequest {
	parsed, _ := time.Parse("2006-01-02", date)
	return persistence.MeetingRequest{
		ID:            id,
		RequesterID:   requesterID,
		DepartmentID:  departmentID,
		Date:          parsed,
		StartTime:     timeslot.ClockTime(10 * 60),
		EndTime:       timeslot.ClockTime(11 * 60),
		Title:         "Quarterly review",
		ModeratorName: "A. Moderator",
		Status:        "pending",
		CreatedAt:     testClock,
		UpdatedAt:     testClock,
	}
}

func TestMigration_Idempotent(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)

	// Applying twice must be a no-op, not a failure.
	if err := migration.NewRunner(pool.DB()).Apply(context.Background()); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	var applied int
	if err := pool.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if applied == 0 {
		t.Fatal("expected at least one recorded migration")
	}
}

func TestConnectionPool_EnforcesForeignKeys(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	repo := NewUserRepository(pool)

	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           "user-1",
		Email:        "user@example.com",
		DisplayName:  "User",
		DepartmentID: "ghost",
		CreatedAt:    testClock,
		UpdatedAt:    testClock,
	})
	if err != persistence.ErrForeignKeyViolation {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestConnectionPool_WithTransactionRollsBack(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)

	boom := fmt.Errorf("boom")
	err := pool.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		if _, execErr := tx.Exec(
			`INSERT INTO departments (id, name, weekly_limit, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
			"dept-tx", "Transient", formatTime(testClock), formatTime(testClock),
		); execErr != nil {
			t.Fatalf("insert inside transaction failed: %v", execErr)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	_, err = NewDepartmentRepository(pool).GetDepartment(context.Background(), "dept-tx")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rollback to discard the row, got %v", err)
	}
}
