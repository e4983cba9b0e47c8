package http

import (
	"context"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/logging"
)

type contextKey string

const (
	principalContextKey    contextKey = "principal"
	requestIDContextKey    contextKey = "request_id"
	userIDContextKey       contextKey = "user_id"
	departmentIDContextKey contextKey = "department_id"
	closedDateContextKey   contextKey = "closed_date"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithRequestID injects the meeting request identifier resolved from the path.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext extracts a meeting request identifier from the context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithDepartmentID injects the department identifier resolved from the path.
func ContextWithDepartmentID(ctx context.Context, departmentID string) context.Context {
	return context.WithValue(ctx, departmentIDContextKey, departmentID)
}

// DepartmentIDFromContext extracts a department identifier from the context.
func DepartmentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(departmentIDContextKey).(string)
	return id, ok
}

// ContextWithClosedDate injects the closure date resolved from the path.
func ContextWithClosedDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, closedDateContextKey, date)
}

// ClosedDateFromContext extracts a closure date from the context.
func ClosedDateFromContext(ctx context.Context) (string, bool) {
	date, ok := ctx.Value(closedDateContextKey).(string)
	return date, ok
}

// ContextWithLogger attaches a request scoped logger to the context.
var ContextWithLogger = logging.ContextWithLogger

// LoggerFromContext extracts a request scoped logger from the context.
var LoggerFromContext = logging.FromContext
