package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/conference-booking/internal/persistence/sqlite"
	"github.com/example/conference-booking/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool        *sqlite.ConnectionPool
	Users       *sqlite.UserRepository
	Departments *sqlite.DepartmentRepository
	Requests    *sqlite.MeetingRequestRepository
	ClosedDates *sqlite.ClosedDateRepository
	Sessions    *sqlite.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")

	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open connection pool: %v", err)
	}

	if err := migration.NewRunner(pool.DB()).Apply(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to apply migrations: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:        pool,
		Users:       sqlite.NewUserRepository(pool),
		Departments: sqlite.NewDepartmentRepository(pool),
		Requests:    sqlite.NewMeetingRequestRepository(pool),
		ClosedDates: sqlite.NewClosedDateRepository(pool),
		Sessions:    sqlite.NewSessionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
