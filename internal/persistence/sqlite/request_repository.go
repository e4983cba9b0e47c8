package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/conference-booking/internal/persistence"
	"github.com/example/conference-booking/internal/timeslot"
)

// MeetingRequestRepository implements persistence.MeetingRequestRepository
// using SQLite.
type MeetingRequestRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMeetingRequestRepository creates a new SQLite meeting request repository.
func NewMeetingRequestRepository(pool *ConnectionPool) *MeetingRequestRepository {
	return &MeetingRequestRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const requestColumns = `id, requester_id, department_id, date, start_minute, end_minute,
	title, moderator_name, description, estimated_participants, status,
	resource_ref, join_url, host_url,
	approved_by, approved_at, rejected_by, rejected_at, reject_reason,
	cancelled_by, cancelled_at, cancel_reason,
	version, created_at, updated_at`

// InsertRequest stores a new request at version 1.
func (r *MeetingRequestRepository) InsertRequest(ctx context.Context, request persistence.MeetingRequest) error {
	if request.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO meeting_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		request.ID,
		request.RequesterID,
		request.DepartmentID,
		formatDate(request.Date),
		int(request.StartTime),
		int(request.EndTime),
		request.Title,
		request.ModeratorName,
		nullString(request.Description),
		nullInt(request.EstimatedParticipants),
		request.Status,
		nullString(request.ResourceRef),
		nullString(request.JoinURL),
		nullString(request.HostURL),
		nullString(request.ApprovedBy),
		nullTime(request.ApprovedAt),
		nullString(request.RejectedBy),
		nullTime(request.RejectedAt),
		nullString(request.RejectReason),
		nullString(request.CancelledBy),
		nullTime(request.CancelledAt),
		nullString(request.CancelReason),
		1,
		formatTime(request.CreatedAt),
		formatTime(request.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetRequest retrieves a request by ID.
func (r *MeetingRequestRepository) GetRequest(ctx context.Context, id string) (persistence.MeetingRequest, error) {
	if id == "" {
		return persistence.MeetingRequest{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+requestColumns+` FROM meeting_requests WHERE id = ?`, id)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.MeetingRequest{}, persistence.ErrNotFound
		}
		return persistence.MeetingRequest{}, r.mapper.MapError(err)
	}
	return request, nil
}

// UpdateRequest replaces the stored row only when the carried version matches,
// bumping the version on success. A stale version yields ErrVersionConflict.
func (r *MeetingRequestRepository) UpdateRequest(ctx context.Context, request persistence.MeetingRequest) (persistence.MeetingRequest, error) {
	if request.ID == "" {
		return persistence.MeetingRequest{}, persistence.ErrNotFound
	}

	var updated persistence.MeetingRequest
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `UPDATE meeting_requests SET
			date = ?, start_minute = ?, end_minute = ?,
			title = ?, moderator_name = ?, description = ?, estimated_participants = ?,
			status = ?, resource_ref = ?, join_url = ?, host_url = ?,
			approved_by = ?, approved_at = ?, rejected_by = ?, rejected_at = ?, reject_reason = ?,
			cancelled_by = ?, cancelled_at = ?, cancel_reason = ?,
			version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`

		result, err := r.helper.ExecTx(tx, query,
			formatDate(request.Date),
			int(request.StartTime),
			int(request.EndTime),
			request.Title,
			request.ModeratorName,
			nullString(request.Description),
			nullInt(request.EstimatedParticipants),
			request.Status,
			nullString(request.ResourceRef),
			nullString(request.JoinURL),
			nullString(request.HostURL),
			nullString(request.ApprovedBy),
			nullTime(request.ApprovedAt),
			nullString(request.RejectedBy),
			nullTime(request.RejectedAt),
			nullString(request.RejectReason),
			nullString(request.CancelledBy),
			nullTime(request.CancelledAt),
			nullString(request.CancelReason),
			formatTime(request.UpdatedAt),
			request.ID,
			request.Version,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
		}
		if affected == 0 {
			// Distinguish a missing row from a version mismatch.
			var exists int
			if err := r.helper.QueryRowTx(tx, "SELECT 1 FROM meeting_requests WHERE id = ?", request.ID).Scan(&exists); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return persistence.ErrNotFound
				}
				return r.mapper.MapError(err)
			}
			return persistence.ErrVersionConflict
		}

		row := r.helper.QueryRowTx(tx, `SELECT `+requestColumns+` FROM meeting_requests WHERE id = ?`, request.ID)
		updated, err = scanRequest(row)
		return err
	})
	if err != nil {
		return persistence.MeetingRequest{}, err
	}
	return updated, nil
}

// DeleteRequest removes a request by ID.
func (r *MeetingRequestRepository) DeleteRequest(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM meeting_requests WHERE id = ?", id)
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

// ListRequests returns the requests matching the filter, ordered by date and
// start time.
func (r *MeetingRequestRepository) ListRequests(ctx context.Context, filter persistence.RequestFilter) ([]persistence.MeetingRequest, error) {
	query, args := buildRequestQuery(filter)

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var requests []persistence.MeetingRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return requests, nil
}

// buildRequestQuery assembles the list statement from the filter primitives.
func buildRequestQuery(filter persistence.RequestFilter) (string, []any) {
	query := `SELECT ` + requestColumns + ` FROM meeting_requests`

	var conditions []string
	var args []any

	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, formatDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, formatDate(*filter.DateTo))
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "id != ?")
		args = append(args, filter.ExcludeID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_minute ASC, id ASC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (persistence.MeetingRequest, error) {
	var request persistence.MeetingRequest
	var dateStr, createdAtStr, updatedAtStr string
	var startMinute, endMinute int
	var description, resourceRef, joinURL, hostURL sql.NullString
	var approvedBy, rejectedBy, rejectReason, cancelledBy, cancelReason sql.NullString
	var approvedAt, rejectedAt, cancelledAt sql.NullString
	var estimatedParticipants sql.NullInt64

	err := row.Scan(
		&request.ID,
		&request.RequesterID,
		&request.DepartmentID,
		&dateStr,
		&startMinute,
		&endMinute,
		&request.Title,
		&request.ModeratorName,
		&description,
		&estimatedParticipants,
		&request.Status,
		&resourceRef,
		&joinURL,
		&hostURL,
		&approvedBy,
		&approvedAt,
		&rejectedBy,
		&rejectedAt,
		&rejectReason,
		&cancelledBy,
		&cancelledAt,
		&cancelReason,
		&request.Version,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.MeetingRequest{}, err
	}

	request.StartTime = timeslot.ClockTime(startMinute)
	request.EndTime = timeslot.ClockTime(endMinute)
	request.Description = stringPtr(description)
	request.EstimatedParticipants = intPtr(estimatedParticipants)
	request.ResourceRef = stringPtr(resourceRef)
	request.JoinURL = stringPtr(joinURL)
	request.HostURL = stringPtr(hostURL)
	request.ApprovedBy = stringPtr(approvedBy)
	request.RejectedBy = stringPtr(rejectedBy)
	request.RejectReason = stringPtr(rejectReason)
	request.CancelledBy = stringPtr(cancelledBy)
	request.CancelReason = stringPtr(cancelReason)

	if request.Date, err = parseDate(dateStr, "date"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	if request.ApprovedAt, err = timePtr(approvedAt, "approved_at"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	if request.RejectedAt, err = timePtr(rejectedAt, "rejected_at"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	if request.CancelledAt, err = timePtr(cancelledAt, "cancelled_at"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	if request.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	if request.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.MeetingRequest{}, err
	}
	return request, nil
}
