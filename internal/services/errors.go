package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAttribute     = errors.New("missing attribute")
	ErrGeneratorUnavailable = errors.New("generator unavailable")
	ErrEmptyOutput          = errors.New("empty output")
	ErrConfiguration        = errors.New("configuration error")
	ErrExternalTool         = errors.New("external tool error")
	ErrValidation           = errors.New("validation error")
	ErrTimeout              = errors.New("timeout")
)

// Diagnostic kinds recorded per (identity, generator) pair.
const (
	KindMissingAttribute     = "missing_attribute"
	KindGeneratorUnavailable = "generator_unavailable"
	KindEmptyOutput          = "empty_output"
	KindConfiguration        = "configuration"
	KindInvalidIdentity      = "invalid_identity"
	KindUnknown              = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrGeneratorUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the diagnostic kind persisted with run results.
// Timeouts and external tool failures are reported as generator unavailability.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAttribute):
		return KindMissingAttribute
	case errors.Is(err, ErrEmptyOutput):
		return KindEmptyOutput
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindInvalidIdentity
	case errors.Is(err, ErrGeneratorUnavailable), errors.Is(err, ErrTimeout), errors.Is(err, ErrExternalTool):
		return KindGeneratorUnavailable
	default:
		return KindUnknown
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
