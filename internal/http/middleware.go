package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/conference-booking/internal/application"
)

// SessionValidator resolves a session token to the authenticated principal.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

/// RequireSession guards a handler chain: requests without a valid session
// token are rejected before reaching the handler, and the resolved principal
// is attached to the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger, translator Translator) func(http.Handler) http.Handler {
	responder := newResponder(logger, translator)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ContextWithLocale(r.Context(), requestLocale(r))

			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeErrorKey(ctx, w, http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "error_session_expired", nil)
				return
			}

			principal, err := validator.ValidateSession(ctx, token)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrSessionExpired),
					errors.Is(err, application.ErrSessionRevoked),
					errors.Is(err, application.ErrUnauthorized),
					errors.Is(err, application.ErrNotFound):
					responder.writeErrorKey(ctx, w, http.StatusUnauthorized, "AUTH_SESSION_EXPIRED", "error_session_expired", nil)
				default:
					responder.handleServiceError(ctx, w, err)
				}
				return
			}

			ctx = ContextWithPrincipal(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger carrying a generated request
// id, and logs request start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", uuid.NewString(),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
