package conferencing

import (
	"context"
	"log/slog"
)

// LogSink records release failures in the structured log so operators can
// reclaim the orphaned rooms. It implements application.ReleaseFailureSink.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a release failure sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "conferencing")}
}

// ReleaseFailed logs the orphaned resource.
func (s *LogSink) ReleaseFailed(ctx context.Context, requestID, resourceRef string, err error) {
	s.logger.ErrorContext(ctx, "conference room release failed, manual reclaim required",
		"request_id", requestID,
		"resource_ref", resourceRef,
		"error", err,
	)
}
