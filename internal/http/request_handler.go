package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/timeslot"
)

type bookingService interface {
	CreateRequest(ctx context.Context, params application.CreateRequestParams) (application.MeetingRequest, error)
	CreateRecurringSeries(ctx context.Context, params application.CreateRecurringParams) (application.RecurringResult, error)
	Approve(ctx context.Context, principal application.Principal, requestID string) (application.MeetingRequest, error)
	Reject(ctx context.Context, principal application.Principal, requestID, reason string) (application.MeetingRequest, error)
	Cancel(ctx context.Context, principal application.Principal, requestID, reason string) (application.MeetingRequest, error)
	DeleteRequest(ctx context.Context, principal application.Principal, requestID string) error
	GetRequest(ctx context.Context, principal application.Principal, requestID string) (application.RequestView, error)
	ListRequests(ctx context.Context, params application.ListRequestsParams) ([]application.RequestView, error)
	CheckAvailability(ctx context.Context, principal application.Principal, date time.Time, start, end timeslot.ClockTime, excludeID string) (application.Availability, error)
}

// RequestHandler serves meeting request creation, lifecycle and queries.
type RequestHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

// NewRequestHandler creates a meeting request handler.
func NewRequestHandler(service bookingService, logger *slog.Logger, translator Translator) *RequestHandler {
	base := defaultLogger(logger)
	return &RequestHandler{service: service, responder: newResponder(base, translator), logger: base}
}

func (h *RequestHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RequestHandler", operation, attrs...)
}

// Create books a single meeting request.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	request, err := h.service.CreateRequest(r.Context(), application.CreateRequestParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "booking_id", request.ID).InfoContext(r.Context(), "meeting request created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, requestResponse{
		Request: toRequestDTO(request, false),
		Message: h.responder.message(r.Context(), "request_created", nil),
	})
}

// CreateRecurring expands a weekly series and books every admissible date.
func (h *RequestHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req recurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.CreateRecurringSeries(r.Context(), application.CreateRecurringParams{
		Principal: principal,
		Input: application.RecurringInput{
			RequestInput: req.bookingRequest.toInput(),
			Weekdays:     parseWeekdays(req.Weekdays),
			WeekCount:    req.WeekCount,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "CreateRecurring",
		"created", len(result.Created),
		"rejected", len(result.Rejected),
	).InfoContext(r.Context(), "recurring series booked")

	response := recurringResponse{
		Created:  make([]requestDTO, 0, len(result.Created)),
		Rejected: toRejectedDateDTOs(result.Rejected),
	}
	for _, request := range result.Created {
		response.Created = append(response.Created, toRequestDTO(request, false))
	}
	if len(result.Rejected) > 0 {
		response.Message = h.responder.message(r.Context(), "series_partial", map[string]any{
			"Created": len(result.Created),
			"Dropped": len(result.Rejected),
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, response)
}

// Get fetches a single request subject to visibility rules.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.GetRequest(r.Context(), principal, requestID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, requestResponse{
		Request: toRequestDTO(view.MeetingRequest, view.HostWithheld),
	})
}

// List returns the requests visible to the principal, optionally filtered.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := buildListParams(r.URL.Query(), principal)

	views, err := h.service.ListRequests(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listRequestsResponse{Requests: make([]requestDTO, 0, len(views))}
	for _, view := range views {
		response.Requests = append(response.Requests, toRequestDTO(view.MeetingRequest, view.HostWithheld))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Approve transitions a pending request to approved, allocating the
// conferencing resource.
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Approve", "request_approved", func(ctx context.Context, principal application.Principal, id, _ string) (application.MeetingRequest, error) {
		return h.service.Approve(ctx, principal, id)
	})
}

// Reject transitions a pending request to rejected.
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Reject", "request_rejected", func(ctx context.Context, principal application.Principal, id, reason string) (application.MeetingRequest, error) {
		return h.service.Reject(ctx, principal, id, reason)
	})
}

// Cancel transitions a pending or approved request to cancelled.
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Cancel", "request_cancelled", func(ctx context.Context, principal application.Principal, id, reason string) (application.MeetingRequest, error) {
		return h.service.Cancel(ctx, principal, id, reason)
	})
}

func (h *RequestHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	operation, messageKey string,
	apply func(ctx context.Context, principal application.Principal, id, reason string) (application.MeetingRequest, error),
) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	// The body is optional for transitions without a reason.
	var req transitionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	principal, _ := PrincipalFromContext(r.Context())
	request, err := apply(r.Context(), principal, requestID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), operation, "booking_id", request.ID, "status", string(request.Status)).
		InfoContext(r.Context(), "meeting request transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, requestResponse{
		Request: toRequestDTO(request, false),
		Message: h.responder.message(r.Context(), messageKey, nil),
	})
}

// Delete hard-removes a rejected request.
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRequest(r.Context(), principal, requestID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "booking_id", requestID).InfoContext(r.Context(), "meeting request deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Availability probes whether a candidate slot could be booked right now.
func (h *RequestHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	date, err := time.Parse("2006-01-02", strings.TrimSpace(query.Get("date")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	start, err := timeslot.ParseClock(strings.TrimSpace(query.Get("start")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := timeslot.ParseClock(strings.TrimSpace(query.Get("end")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	availability, err := h.service.CheckAvailability(r.Context(), principal, date, start, end, strings.TrimSpace(query.Get("exclude")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: availability.Available,
		Reason:    availability.Reason,
	})
}

type bookingRequest struct {
	Date                  string `json:"date"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	Title                 string `json:"title"`
	ModeratorName         string `json:"moderator_name"`
	Description           string `json:"description"`
	EstimatedParticipants *int   `json:"estimated_participants"`
}

func (r bookingRequest) toInput() application.RequestInput {
	input := application.RequestInput{
		Title:                 strings.TrimSpace(r.Title),
		ModeratorName:         strings.TrimSpace(r.ModeratorName),
		Description:           r.Description,
		EstimatedParticipants: r.EstimatedParticipants,
	}
	if date, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date)); err == nil {
		input.Date = date
	}
	if start, err := timeslot.ParseClock(strings.TrimSpace(r.StartTime)); err == nil {
		input.StartTime = start
	}
	if end, err := timeslot.ParseClock(strings.TrimSpace(r.EndTime)); err == nil {
		input.EndTime = end
	}
	return input
}

type recurringRequest struct {
	bookingRequest
	Weekdays  []string `json:"weekdays"`
	WeekCount int      `json:"week_count"`
}

func parseWeekdays(values []string) []time.Weekday {
	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	var weekdays []time.Weekday
	for _, value := range values {
		if weekday, ok := names[strings.ToLower(strings.TrimSpace(value))]; ok {
			weekdays = append(weekdays, weekday)
		}
	}
	return weekdays
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

type requestResponse struct {
	Request requestDTO `json:"request"`
	Message string     `json:"message,omitempty"`
}

type listRequestsResponse struct {
	Requests []requestDTO `json:"requests"`
}

type recurringResponse struct {
	Created  []requestDTO      `json:"created"`
	Rejected []rejectedDateDTO `json:"rejected,omitempty"`
	Message  string            `json:"message,omitempty"`
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type requestDTO struct {
	ID                    string       `json:"id"`
	RequesterID           string       `json:"requester_id"`
	DepartmentID          string       `json:"department_id"`
	Date                  string       `json:"date"`
	StartTime             string       `json:"start_time"`
	EndTime               string       `json:"end_time"`
	Title                 string       `json:"title"`
	ModeratorName         string       `json:"moderator_name"`
	Description           string       `json:"description,omitempty"`
	EstimatedParticipants *int         `json:"estimated_participants,omitempty"`
	Status                string       `json:"status"`
	Resource              *resourceDTO `json:"resource,omitempty"`
	HostWithheld          bool         `json:"host_withheld,omitempty"`
	ApprovedBy            string       `json:"approved_by,omitempty"`
	ApprovedAt            string       `json:"approved_at,omitempty"`
	RejectedBy            string       `json:"rejected_by,omitempty"`
	RejectedAt            string       `json:"rejected_at,omitempty"`
	RejectReason          string       `json:"reject_reason,omitempty"`
	CancelledBy           string       `json:"cancelled_by,omitempty"`
	CancelledAt           string       `json:"cancelled_at,omitempty"`
	CancelReason          string       `json:"cancel_reason,omitempty"`
	CreatedAt             string       `json:"created_at"`
	UpdatedAt             string       `json:"updated_at"`
	Version               int64        `json:"version"`
}

type resourceDTO struct {
	Ref     string `json:"ref"`
	JoinURL string `json:"join_url"`
	HostURL string `json:"host_url,omitempty"`
}

type rejectedDateDTO struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func toRequestDTO(request application.MeetingRequest, hostWithheld bool) requestDTO {
	dto := requestDTO{
		ID:                    request.ID,
		RequesterID:           request.RequesterID,
		DepartmentID:          request.DepartmentID,
		Date:                  request.Date.Format("2006-01-02"),
		StartTime:             request.StartTime.String(),
		EndTime:               request.EndTime.String(),
		Title:                 request.Title,
		ModeratorName:         request.ModeratorName,
		Description:           request.Description,
		EstimatedParticipants: request.EstimatedParticipants,
		Status:                string(request.Status),
		HostWithheld:          hostWithheld,
		ApprovedBy:            request.ApprovedBy,
		RejectedBy:            request.RejectedBy,
		RejectReason:          request.RejectReason,
		CancelledBy:           request.CancelledBy,
		CancelReason:          request.CancelReason,
		CreatedAt:             request.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:             request.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Version:               request.Version,
	}
	if request.Resource != nil {
		dto.Resource = &resourceDTO{
			Ref:     request.Resource.Ref,
			JoinURL: request.Resource.JoinURL,
			HostURL: request.Resource.HostURL,
		}
	}
	if request.ApprovedAt != nil {
		dto.ApprovedAt = request.ApprovedAt.UTC().Format(time.RFC3339Nano)
	}
	if request.RejectedAt != nil {
		dto.RejectedAt = request.RejectedAt.UTC().Format(time.RFC3339Nano)
	}
	if request.CancelledAt != nil {
		dto.CancelledAt = request.CancelledAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toRejectedDateDTOs(rejected []application.RejectedDate) []rejectedDateDTO {
	if len(rejected) == 0 {
		return nil
	}
	out := make([]rejectedDateDTO, 0, len(rejected))
	for _, r := range rejected {
		out = append(out, rejectedDateDTO{
			Date:   r.Date.Format("2006-01-02"),
			Reason: r.Reason,
		})
	}
	return out
}

func buildListParams(values url.Values, principal application.Principal) application.ListRequestsParams {
	params := application.ListRequestsParams{Principal: principal}

	params.DepartmentID = strings.TrimSpace(values.Get("department_id"))
	params.RequesterID = strings.TrimSpace(values.Get("requester_id"))

	for _, status := range parseCSV(values.Get("statuses")) {
		candidate := application.Status(strings.ToLower(status))
		if candidate.Valid() {
			params.Statuses = append(params.Statuses, candidate)
		}
	}

	if from := strings.TrimSpace(values.Get("date_from")); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			params.DateFrom = &ts
		}
	}
	if to := strings.TrimSpace(values.Get("date_to")); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			params.DateTo = &ts
		}
	}

	return params
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
