package main

import (
	"context"
	"time"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/persistence"
)

// userStore adapts the SQLite user repository to the application's
// UserRepository and CredentialStore contracts. Newly created accounts are
// sealed with a throwaway hash; credentials are provisioned out of band.
type userStore struct {
	repo persistence.UserRepository
}

func newUserStore(repo persistence.UserRepository) *userStore {
	return &userStore{repo: repo}
}

func (s *userStore) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	hash, err := application.HashPassword(randomHex(16), application.DefaultPasswordParams)
	if err != nil {
		return application.User{}, err
	}
	if err := s.repo.CreateUser(ctx, toPersistenceUser(user, hash, false)); err != nil {
		return application.User{}, err
	}
	stored, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (s *userStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (s *userStore) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := s.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash, current.Disabled)); err != nil {
		return application.User{}, err
	}
	stored, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (s *userStore) DeleteUser(ctx context.Context, id string) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *userStore) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (s *userStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

// departmentStore adapts the SQLite department repository to the
// application's DepartmentRepository and the quota tracker's directory.
type departmentStore struct {
	repo persistence.DepartmentRepository
}

func newDepartmentStore(repo persistence.DepartmentRepository) *departmentStore {
	return &departmentStore{repo: repo}
}

func (s *departmentStore) CreateDepartment(ctx context.Context, department application.Department) (application.Department, error) {
	if err := s.repo.CreateDepartment(ctx, toPersistenceDepartment(department)); err != nil {
		return application.Department{}, err
	}
	return s.GetDepartment(ctx, department.ID)
}

func (s *departmentStore) GetDepartment(ctx context.Context, id string) (application.Department, error) {
	stored, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		return application.Department{}, err
	}
	return toApplicationDepartment(stored), nil
}

func (s *departmentStore) UpdateDepartment(ctx context.Context, department application.Department) (application.Department, error) {
	if err := s.repo.UpdateDepartment(ctx, toPersistenceDepartment(department)); err != nil {
		return application.Department{}, err
	}
	return s.GetDepartment(ctx, department.ID)
}

func (s *departmentStore) DeleteDepartment(ctx context.Context, id string) error {
	return s.repo.DeleteDepartment(ctx, id)
}

func (s *departmentStore) ListDepartments(ctx context.Context) ([]application.Department, error) {
	models, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	departments := make([]application.Department, 0, len(models))
	for _, model := range models {
		departments = append(departments, toApplicationDepartment(model))
	}
	return departments, nil
}

// requestStore adapts the SQLite request repository to the application's
// RequestRepository, translating composable query filters on the way down.
type requestStore struct {
	repo persistence.MeetingRequestRepository
}

func newRequestStore(repo persistence.MeetingRequestRepository) *requestStore {
	return &requestStore{repo: repo}
}

func (s *requestStore) InsertRequest(ctx context.Context, request application.MeetingRequest) (application.MeetingRequest, error) {
	if err := s.repo.InsertRequest(ctx, toPersistenceRequest(request)); err != nil {
		return application.MeetingRequest{}, err
	}
	return s.GetRequest(ctx, request.ID)
}

func (s *requestStore) GetRequest(ctx context.Context, id string) (application.MeetingRequest, error) {
	stored, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return application.MeetingRequest{}, err
	}
	return toApplicationRequest(stored), nil
}

func (s *requestStore) UpdateRequest(ctx context.Context, request application.MeetingRequest) (application.MeetingRequest, error) {
	stored, err := s.repo.UpdateRequest(ctx, toPersistenceRequest(request))
	if err != nil {
		return application.MeetingRequest{}, err
	}
	return toApplicationRequest(stored), nil
}

func (s *requestStore) DeleteRequest(ctx context.Context, id string) error {
	return s.repo.DeleteRequest(ctx, id)
}

func (s *requestStore) ListRequests(ctx context.Context, query application.RequestQuery) ([]application.MeetingRequest, error) {
	filter := persistence.RequestFilter{
		RequesterID:  query.RequesterID,
		DepartmentID: query.DepartmentID,
		DateFrom:     query.DateFrom,
		DateTo:       query.DateTo,
		ExcludeID:    query.ExcludeID,
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, string(status))
	}

	models, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	requests := make([]application.MeetingRequest, 0, len(models))
	for _, model := range models {
		requests = append(requests, toApplicationRequest(model))
	}
	return requests, nil
}

// closedDateStore adapts the closure calendar repository.
type closedDateStore struct {
	repo persistence.ClosedDateRepository
}

func newClosedDateStore(repo persistence.ClosedDateRepository) *closedDateStore {
	return &closedDateStore{repo: repo}
}

func (s *closedDateStore) AddClosedDate(ctx context.Context, closed application.ClosedDate) (application.ClosedDate, error) {
	row := persistence.ClosedDate{
		Date:      closed.Date,
		Reason:    closed.Reason,
		CreatedBy: closed.CreatedBy,
		CreatedAt: closed.CreatedAt,
	}
	if err := s.repo.AddClosedDate(ctx, row); err != nil {
		return application.ClosedDate{}, err
	}
	return closed, nil
}

func (s *closedDateStore) RemoveClosedDate(ctx context.Context, date time.Time) error {
	return s.repo.RemoveClosedDate(ctx, date)
}

func (s *closedDateStore) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	return s.repo.IsClosed(ctx, date)
}

func (s *closedDateStore) ListClosedDates(ctx context.Context, from, to time.Time) ([]application.ClosedDate, error) {
	models, err := s.repo.ListClosedDates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	closures := make([]application.ClosedDate, 0, len(models))
	for _, model := range models {
		closures = append(closures, application.ClosedDate{
			Date:      model.Date,
			Reason:    model.Reason,
			CreatedBy: model.CreatedBy,
			CreatedAt: model.CreatedAt,
		})
	}
	return closures, nil
}

// sessionStore adapts the session repository.
type sessionStore struct {
	repo persistence.SessionRepository
}

func newSessionStore(repo persistence.SessionRepository) *sessionStore {
	return &sessionStore{repo: repo}
}

func (s *sessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := s.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (s *sessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (s *sessionStore) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := s.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (s *sessionStore) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := s.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (s *sessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return s.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:           model.ID,
		Email:        model.Email,
		DisplayName:  model.DisplayName,
		DepartmentID: model.DepartmentID,
		IsAdmin:      model.IsAdmin,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string, disabled bool) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		DepartmentID: user.DepartmentID,
		IsAdmin:      user.IsAdmin,
		PasswordHash: passwordHash,
		Disabled:     disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationDepartment(model persistence.Department) application.Department {
	return application.Department{
		ID:          model.ID,
		Name:        model.Name,
		WeeklyLimit: cloneInt(model.WeeklyLimit),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceDepartment(department application.Department) persistence.Department {
	return persistence.Department{
		ID:          department.ID,
		Name:        department.Name,
		WeeklyLimit: cloneInt(department.WeeklyLimit),
		CreatedAt:   department.CreatedAt,
		UpdatedAt:   department.UpdatedAt,
	}
}

func toApplicationRequest(model persistence.MeetingRequest) application.MeetingRequest {
	request := application.MeetingRequest{
		ID:                    model.ID,
		RequesterID:           model.RequesterID,
		DepartmentID:          model.DepartmentID,
		Date:                  model.Date,
		StartTime:             model.StartTime,
		EndTime:               model.EndTime,
		Title:                 model.Title,
		ModeratorName:         model.ModeratorName,
		Description:           stringValue(model.Description),
		EstimatedParticipants: cloneInt(model.EstimatedParticipants),
		Status:                application.Status(model.Status),
		ApprovedBy:            stringValue(model.ApprovedBy),
		ApprovedAt:            cloneTime(model.ApprovedAt),
		RejectedBy:            stringValue(model.RejectedBy),
		RejectedAt:            cloneTime(model.RejectedAt),
		RejectReason:          stringValue(model.RejectReason),
		CancelledBy:           stringValue(model.CancelledBy),
		CancelledAt:           cloneTime(model.CancelledAt),
		CancelReason:          stringValue(model.CancelReason),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
		Version:               model.Version,
	}
	if model.ResourceRef != nil {
		request.Resource = &application.ConferenceResource{
			Ref:     stringValue(model.ResourceRef),
			JoinURL: stringValue(model.JoinURL),
			HostURL: stringValue(model.HostURL),
		}
	}
	return request
}

func toPersistenceRequest(request application.MeetingRequest) persistence.MeetingRequest {
	row := persistence.MeetingRequest{
		ID:                    request.ID,
		RequesterID:           request.RequesterID,
		DepartmentID:          request.DepartmentID,
		Date:                  request.Date,
		StartTime:             request.StartTime,
		EndTime:               request.EndTime,
		Title:                 request.Title,
		ModeratorName:         request.ModeratorName,
		Description:           optionalString(request.Description),
		EstimatedParticipants: cloneInt(request.EstimatedParticipants),
		Status:                string(request.Status),
		ApprovedBy:            optionalString(request.ApprovedBy),
		ApprovedAt:            cloneTime(request.ApprovedAt),
		RejectedBy:            optionalString(request.RejectedBy),
		RejectedAt:            cloneTime(request.RejectedAt),
		RejectReason:          optionalString(request.RejectReason),
		CancelledBy:           optionalString(request.CancelledBy),
		CancelledAt:           cloneTime(request.CancelledAt),
		CancelReason:          optionalString(request.CancelReason),
		CreatedAt:             request.CreatedAt,
		UpdatedAt:             request.UpdatedAt,
		Version:               request.Version,
	}
	if request.Resource != nil {
		row.ResourceRef = optionalString(request.Resource.Ref)
		row.JoinURL = optionalString(request.Resource.JoinURL)
		row.HostURL = optionalString(request.Resource.HostURL)
	}
	return row
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	clone := value
	return &clone
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
