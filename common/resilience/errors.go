// Package resilience provides the retry and circuit-breaker primitives that
// guard every outbound call the pipeline makes to an external dependency.
package resilience

import (
	"errors"
	"fmt"
)

// StatusError is an error carrying an HTTP-like status code from a
// dependency. The default retry policy keys off the code: 5xx and 429 are
// transient, other 4xx are the caller's fault and are never retried.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dependency returned status %d", e.Code)
	}
	return fmt.Sprintf("dependency returned status %d: %s", e.Code, e.Message)
}

// NewStatusError builds a StatusError for the given code.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

// DefaultRetryable is the default retry policy: retry on anything that looks
// like a transport failure, and on 5xx / 429 responses. Client errors (other
// 4xx) are surfaced immediately.
func DefaultRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	// No status attached: network-level failure, timeout, connection reset.
	return true
}
