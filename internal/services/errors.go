package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline failure markers. Every fatal error that leaves a stage carries
// exactly one of these so callers can tell where a run died and whether a
// retry is worthwhile.
var (
	ErrAcquisition       = errors.New("acquisition error")
	ErrConversion        = errors.New("conversion error")
	ErrBadInput          = errors.New("unsupported or corrupt input")
	ErrEngineFault       = errors.New("recognition engine failure")
	ErrTranslation       = errors.New("translation error")
	ErrSubtitleStructure = errors.New("subtitle structure error")
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTransient         = errors.New("transient failure")
)

// Job history statuses derived from a run's terminal error.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether rerunning the same job unchanged could succeed.
// Bad input, structural and configuration failures are permanent. An
// acquisition error that reports Temporary() decides for itself.
func Retryable(err error) bool {
	var temp interface{ Temporary() bool }
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrBadInput),
		errors.Is(err, ErrSubtitleStructure),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrAcquisition) && errors.As(err, &temp):
		return temp.Temporary()
	case errors.Is(err, ErrEngineFault),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrAcquisition),
		errors.Is(err, ErrExternalTool):
		return true
	default:
		return false
	}
}

// FailureStatus maps a terminal run error to the job history status.
func FailureStatus(err error) string {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, ErrBadInput), errors.Is(err, ErrValidation), errors.Is(err, ErrSubtitleStructure):
		return StatusRejected
	default:
		return StatusFailed
	}
}

// FailureKind returns a short label for the marker carried by err, used for
// metrics labels and log fields.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAcquisition):
		return "acquisition"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrBadInput):
		return "bad_input"
	case errors.Is(err, ErrEngineFault):
		return "engine_fault"
	case errors.Is(err, ErrTranslation):
		return "translation"
	case errors.Is(err, ErrSubtitleStructure):
		return "subtitle_structure"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
