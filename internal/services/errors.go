package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool     = errors.New("external tool error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
	ErrTransient        = errors.New("transient failure")
	ErrContention       = errors.New("resource contention")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later disposition. The marker should be one of
// the exported sentinel errors above.
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

// Disposition says what a stage worker should do with a failed task.
type Disposition int

const (
	// DispositionRetry re-publishes the task with backoff and counts the
	// failure against the unit's retry budget.
	DispositionRetry Disposition = iota
	// DispositionFail marks the unit failed with no further delivery.
	DispositionFail
	// DispositionContention re-publishes with a fixed delay without touching
	// the retry budget; another holder has the resource.
	DispositionContention
	// DispositionRelease returns the task unacked so the queue redelivers it;
	// the unit record could not even be read or written.
	DispositionRelease
)

// Classify maps a stage error to its disposition. Unknown errors are treated
// as transient.
func Classify(err error) Disposition {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return DispositionRelease
	case errors.Is(err, ErrContention):
		return DispositionContention
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return DispositionFail
	default:
		return DispositionRetry
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
