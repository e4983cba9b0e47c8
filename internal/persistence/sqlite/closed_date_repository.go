package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/conference-booking/internal/persistence"
)

// ClosedDateRepository implements persistence.ClosedDateRepository using SQLite.
type ClosedDateRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewClosedDateRepository creates a new SQLite closed date repository.
func NewClosedDateRepository(pool *ConnectionPool) *ClosedDateRepository {
	return &ClosedDateRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// AddClosedDate marks a date as closed. Closing an already closed date yields
// ErrDuplicate.
func (r *ClosedDateRepository) AddClosedDate(ctx context.Context, closed persistence.ClosedDate) error {
	if closed.Date.IsZero() {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		`INSERT INTO closed_dates (date, reason, created_by, created_at) VALUES (?, ?, ?, ?)`,
		formatDate(closed.Date),
		closed.Reason,
		closed.CreatedBy,
		formatTime(closed.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// RemoveClosedDate reopens a date.
func (r *ClosedDateRepository) RemoveClosedDate(ctx context.Context, date time.Time) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM closed_dates WHERE date = ?", formatDate(date))
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

// IsClosed reports whether the date carries a closure marker.
func (r *ClosedDateRepository) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	var one int
	err := r.helper.QueryRow(ctx, "SELECT 1 FROM closed_dates WHERE date = ?", formatDate(date)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, r.mapper.MapError(err)
	}
	return true, nil
}

// ListClosedDates returns the closure markers inside [from, to] ordered by date.
func (r *ClosedDateRepository) ListClosedDates(ctx context.Context, from, to time.Time) ([]persistence.ClosedDate, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT date, reason, created_by, created_at FROM closed_dates WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var closedDates []persistence.ClosedDate
	for rows.Next() {
		var closed persistence.ClosedDate
		var dateStr, createdAtStr string
		if err := rows.Scan(&dateStr, &closed.Reason, &closed.CreatedBy, &createdAtStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if closed.Date, err = parseDate(dateStr, "date"); err != nil {
			return nil, err
		}
		if closed.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
			return nil, err
		}
		closedDates = append(closedDates, closed)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return closedDates, nil
}
