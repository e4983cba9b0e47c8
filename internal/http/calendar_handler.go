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

type calendarService interface {
	CloseDate(ctx context.Context, principal application.Principal, date time.Time, reason string) (application.ClosedDate, error)
	ReopenDate(ctx context.Context, principal application.Principal, date time.Time) error
	ListClosedDates(ctx context.Context, from, to time.Time) ([]application.ClosedDate, error)
}

// CalendarHandler serves the administrative closure calendar.
type CalendarHandler struct {
	service   calendarService
	responder responder
	logger    *slog.Logger
}

// NewCalendarHandler creates a closure calendar handler.
func NewCalendarHandler(service calendarService, logger *slog.Logger, translator Translator) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base, translator), logger: base}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Close marks a date as closed for booking.
func (h *CalendarHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req closedDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	closed, err := h.service.CloseDate(r.Context(), principal, date, strings.TrimSpace(req.Reason))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Close", "date", req.Date).InfoContext(r.Context(), "date closed for booking")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toClosedDateDTO(closed))
}

// Reopen removes a closure marker.
func (h *CalendarHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	raw, ok := ClosedDateFromContext(r.Context())
	if !ok || strings.TrimSpace(raw) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.ReopenDate(r.Context(), principal, date); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Reopen", "date", raw).InfoContext(r.Context(), "date reopened for booking")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns the closure markers inside the requested range. The range
// defaults to the next 90 days.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	from := time.Now()
	to := from.AddDate(0, 0, 90)
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		to = parsed
	}

	closedDates, err := h.service.ListClosedDates(r.Context(), from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := listClosedDatesResponse{ClosedDates: make([]closedDateDTO, 0, len(closedDates))}
	for _, closed := range closedDates {
		response.ClosedDates = append(response.ClosedDates, toClosedDateDTO(closed))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

type closedDateRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type closedDateDTO struct {
	Date      string `json:"date"`
	Reason    string `json:"reason,omitempty"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

type listClosedDatesResponse struct {
	ClosedDates []closedDateDTO `json:"closed_dates"`
}

func toClosedDateDTO(closed application.ClosedDate) closedDateDTO {
	return closedDateDTO{
		Date:      closed.Date.Format("2006-01-02"),
		Reason:    closed.Reason,
		CreatedBy: closed.CreatedBy,
		CreatedAt: closed.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
