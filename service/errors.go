package service

import (
	"errors"
	"fmt"
)

// ErrEmptyExtraction signals the silent-failure mode of the document-analysis
// service: a successful response carrying zero-length Markdown. Callers must
// treat it as fatal for the article, never as an empty document.
var ErrEmptyExtraction = errors.New("text extraction returned empty output with success status")

// ErrNoStructure is returned when the structure extractor finds no image and
// no anchor tags at all — a parser mismatch rather than a plain document.
var ErrNoStructure = errors.New("no image or anchor tags found in HTML")

// ServiceError wraps a failed remote call. Retryable errors (network,
// throttling, 5xx) are retried with backoff; the rest escalate immediately.
type ServiceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a ServiceError marked retryable.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
