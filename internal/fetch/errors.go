package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common fetch errors
var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrExhausted  = errors.New("retry attempts exhausted")
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// GetStatusCode implements the StatusCoder convention used by retry
// classification.
func (e HTTPError) GetStatusCode() int {
	return e.StatusCode
}

// retryableStatus reports whether an HTTP status signals a transient server
// condition worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return code >= 500
}

// isTransient classifies a transport-level error. Timeouts, temporary
// conditions and connection resets are retried; context cancellation is not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Timeout()
	}

	var tempErr interface{ Temporary() bool }
	if errors.As(err, &tempErr) {
		return tempErr.Temporary()
	}

	// Default: transport errors (resets, refused connections) are retryable
	return true
}
