package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/conference-booking/internal/application"
)

type departmentService interface {
	CreateDepartment(ctx context.Context, params application.CreateDepartmentParams) (application.Department, error)
	UpdateDepartment(ctx context.Context, params application.UpdateDepartmentParams) (application.Department, error)
	DeleteDepartment(ctx context.Context, principal application.Principal, departmentID string) error
	ListDepartments(ctx context.Context, principal application.Principal) ([]application.Department, error)
	GetDepartment(ctx context.Context, id string) (application.Department, error)
}

type quotaService interface {
	DepartmentQuota(ctx context.Context, departmentID string, date time.Time) (application.QuotaUsage, error)
}

// DepartmentHandler serves department management and quota queries.
type DepartmentHandler struct {
	service   departmentService
	quotas    quotaService
	responder responder
	logger    *slog.Logger
}

// NewDepartmentHandler creates a department handler.
func NewDepartmentHandler(service departmentService, quotas quotaService, logger *slog.Logger, translator Translator) *DepartmentHandler {
	base := defaultLogger(logger)
	return &DepartmentHandler{service: service, quotas: quotas, responder: newResponder(base, translator), logger: base}
}

func (h *DepartmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DepartmentHandler", operation, attrs...)
}

// Create registers a department.
func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	department, err := h.service.CreateDepartment(r.Context(), application.CreateDepartmentParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "department_id", department.ID).InfoContext(r.Context(), "department created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDepartmentDTO(department))
}

// Update modifies a department, including its weekly quota limit.
func (h *DepartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := DepartmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDepartmentID)
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	department, err := h.service.UpdateDepartment(r.Context(), application.UpdateDepartmentParams{
		Principal:    principal,
		DepartmentID: departmentID,
		Input:        req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "department_id", department.ID).InfoContext(r.Context(), "department updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTO(department))
}

// Delete removes a department.
func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := DepartmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDepartmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteDepartment(r.Context(), principal, departmentID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "department_id", departmentID).InfoContext(r.Context(), "department deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns every department.
func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	departments, err := h.service.ListDepartments(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listDepartmentsResponse{Departments: make([]departmentDTO, 0, len(departments))}
	for _, department := range departments {
		response.Departments = append(response.Departments, toDepartmentDTO(department))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Quota reports the department's weekly usage for the week containing the
// given date (today when the date parameter is absent).
func (h *DepartmentHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.quotas == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	departmentID, ok := DepartmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(departmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDepartmentID)
		return
	}

	reference := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		reference = parsed
	}

	usage, err := h.quotas.DepartmentQuota(r.Context(), departmentID, reference)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, quotaDTO{
		DepartmentID: usage.DepartmentID,
		WeekStart:    usage.WeekStart.Format("2006-01-02"),
		WeekEnd:      usage.WeekEnd.Format("2006-01-02"),
		Limit:        usage.Limit,
		Used:         usage.Used,
		Remaining:    usage.Remaining,
		Unlimited:    usage.Unlimited(),
	})
}

type departmentRequest struct {
	Name        string `json:"name"`
	WeeklyLimit *int   `json:"weekly_limit"`
}

func (r departmentRequest) toInput() application.DepartmentInput {
	return application.DepartmentInput{
		Name:        strings.TrimSpace(r.Name),
		WeeklyLimit: r.WeeklyLimit,
	}
}

type departmentDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WeeklyLimit *int   `json:"weekly_limit,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type listDepartmentsResponse struct {
	Departments []departmentDTO `json:"departments"`
}

type quotaDTO struct {
	DepartmentID string `json:"department_id"`
	WeekStart    string `json:"week_start"`
	WeekEnd      string `json:"week_end"`
	Limit        *int   `json:"limit,omitempty"`
	Used         int    `json:"used"`
	Remaining    int    `json:"remaining"`
	Unlimited    bool   `json:"unlimited"`
}

func toDepartmentDTO(department application.Department) departmentDTO {
	return departmentDTO{
		ID:          department.ID,
		Name:        department.Name,
		WeeklyLimit: department.WeeklyLimit,
		CreatedAt:   department.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   department.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
