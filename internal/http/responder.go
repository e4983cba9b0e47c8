package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/conference-booking/internal/application"
)

var (
	errBadRequestBody      = errors.New("bad request body")
	errInvalidRequestID    = errors.New("invalid request id")
	errInvalidUserID       = errors.New("invalid user id")
	errInvalidDepartmentID = errors.New("invalid department id")
	errInvalidDate         = errors.New("invalid date")
	errMissingSessionToken = errors.New("missing session token")
)

// Translator resolves user-facing message keys for a locale.
type Translator interface {
	T(locale, key string, data map[string]any) string
}

type responder struct {
	logger     *slog.Logger
	translator Translator
}

func newResponder(logger *slog.Logger, translator Translator) responder {
	return responder{logger: defaultLogger(logger), translator: translator}
}

// localeContextKey carries the Accept-Language preference through the request
// context so nested render helpers do not need the request.
const localeContextKey contextKey = "locale"

// ContextWithLocale attaches the caller's locale preference to the context.
func ContextWithLocale(ctx context.Context, locale string) context.Context {
	if locale == "" {
		return ctx
	}
	return context.WithValue(ctx, localeContextKey, locale)
}

func localeFromContext(ctx context.Context) string {
	locale, _ := ctx.Value(localeContextKey).(string)
	return locale
}

// requestLocale extracts the preferred language tag from Accept-Language.
func requestLocale(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if header == "" {
		return ""
	}
	first := header
	if idx := strings.IndexAny(first, ",;"); idx >= 0 {
		first = first[:idx]
	}
	return strings.TrimSpace(first)
}

func (r responder) message(ctx context.Context, key string, data map[string]any) string {
	if r.translator == nil {
		return key
	}
	return r.translator.T(localeFromContext(ctx), key, data)
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeErrorKey(ctx context.Context, w http.ResponseWriter, status int, code, key string, data map[string]any) {
	r.writeJSON(ctx, w, status, errorResponse{
		ErrorCode: code,
		Message:   r.message(ctx, key, data),
	})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	if err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	key := "error_internal"
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		key = "error_validation"
	case http.StatusUnauthorized:
		key = "error_session_expired"
	case http.StatusForbidden:
		key = "error_unauthorized"
	case http.StatusNotFound:
		key = "error_not_found"
	case http.StatusConflict:
		key = "error_already_exists"
	}
	r.writeErrorKey(ctx, w, status, "", key, nil)
}

// handleServiceError translates the application error taxonomy into HTTP
// status codes and localized messages.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeErrorKey(ctx, w, http.StatusInternalServerError, "", "error_internal", nil)
		return
	}

	logger := r.loggerFor(ctx)

	var vErr *application.ValidationError
	var aErr *application.AdmissibilityError
	var tErr *application.InvalidTransitionError
	var cErr *application.CollaboratorError

	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: r.message(ctx, "error_validation", nil),
			Errors:  vErr.FieldErrors,
		})
	case errors.As(err, &aErr):
		r.writeErrorKey(ctx, w, http.StatusConflict, "BOOKING_INADMISSIBLE",
			admissibilityMessageKey(aErr.Reason), map[string]any{"Date": aErr.Date})
	case errors.As(err, &tErr):
		r.writeErrorKey(ctx, w, http.StatusConflict, "BOOKING_INVALID_TRANSITION", "error_invalid_transition", nil)
	case errors.Is(err, application.ErrConcurrentUpdate):
		r.writeErrorKey(ctx, w, http.StatusConflict, "BOOKING_CONCURRENT_UPDATE", "error_concurrent_update", nil)
	case errors.Is(err, application.ErrNoValidOccurrences):
		r.writeErrorKey(ctx, w, http.StatusConflict, "BOOKING_NO_VALID_OCCURRENCES", "error_no_valid_occurrences", nil)
	case errors.Is(err, application.ErrInvalidCredentials), errors.Is(err, application.ErrAccountDisabled):
		r.writeErrorKey(ctx, w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "error_invalid_credentials", nil)
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeErrorKey(ctx, w, http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "error_session_expired", nil)
	case errors.Is(err, application.ErrUnauthorized):
		r.writeErrorKey(ctx, w, http.StatusForbidden, "AUTH_FORBIDDEN", "error_unauthorized", nil)
	case errors.Is(err, application.ErrNotFound):
		r.writeErrorKey(ctx, w, http.StatusNotFound, "", "error_not_found", nil)
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeErrorKey(ctx, w, http.StatusConflict, "", "error_already_exists", nil)
	case errors.As(err, &cErr):
		logger.ErrorContext(ctx, "collaborator failure", "collaborator", cErr.Collaborator, "error", err)
		r.writeErrorKey(ctx, w, http.StatusBadGateway, "COLLABORATOR_UNAVAILABLE", "error_collaborator", nil)
	default:
		logger.ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeErrorKey(ctx, w, http.StatusInternalServerError, "", "error_internal", nil)
	}
}

func admissibilityMessageKey(reason string) string {
	switch reason {
	case application.ReasonDateClosed:
		return "error_date_closed"
	case application.ReasonUserConflict:
		return "error_user_conflict"
	case application.ReasonQuotaExceeded:
		return "error_quota_exceeded"
	}
	return "error_validation"
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
