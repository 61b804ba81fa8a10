package logging

import (
	"context"
	"log/slog"

	"subline/internal/services"
)

// Structured field keys shared by every subline log line.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldDecisionType  = "decision_type"
	// FieldEventType classifies a line for filtering, e.g. "chunk_transcribed".
	FieldEventType = "event_type"
	// FieldErrorHint suggests what the operator should do next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what a warning costs the user.
	FieldImpact = "impact"
)

// WithContext returns logger tagged with the job, stage and request IDs
// carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var attrs []Attr
	for _, field := range []struct {
		key    string
		lookup func(context.Context) (string, bool)
	}{
		{FieldJobID, services.JobIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	} {
		if value, ok := field.lookup(ctx); ok {
			attrs = append(attrs, String(field.key, value))
		}
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
