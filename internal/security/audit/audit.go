package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// ContextWithRequestID stores the request id so audit events can correlate
// with the access log.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the stored request id, or "" when none was
// attached.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Logger emits structured audit events for sensitive operations.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID := RequestIDFromContext(ctx)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogTenantDeletion records a cascading tenant removal.
func (al *Logger) LogTenantDeletion(ctx context.Context, userID, tenantID, status, details string) {
	al.LogAction(ctx, userID, "delete", "tenant", tenantID, status, details)
}

// LogPasswordReset records an admin-issued credential reset.
func (al *Logger) LogPasswordReset(ctx context.Context, adminID, targetUserID, status string) {
	al.LogAction(ctx, adminID, "reset_password", "user", targetUserID, status, "")
}

// LogDenied records a rejected authorization attempt.
func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
