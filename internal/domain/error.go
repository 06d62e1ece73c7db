package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotConfigured = errors.New("record store not configured")
	ErrAuth          = errors.New("record store auth failed")
	ErrNotFound      = errors.New("record not found")
	ErrBusy          = errors.New("another generation is already running")
	ErrInvalidTask   = errors.New("task has no prompt")
	ErrNoResult      = errors.New("no result url found in generation output")
)

// maxErrBody bounds how much of an upstream response body is carried in an
// error message for operator diagnosis.
const maxErrBody = 500

// UpstreamError is returned for any non-success response from an external
// provider (record store or generation API). Body is truncated.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream http %d: %s", e.StatusCode, e.Body)
}

// NewUpstreamError truncates body to a bounded length before wrapping.
func NewUpstreamError(statusCode int, body string) *UpstreamError {
	return &UpstreamError{StatusCode: statusCode, Body: Truncate(body, maxErrBody)}
}

// Truncate bounds s to max bytes, appending an ellipsis marker when cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
