package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// maxErrorBody caps how much of an error response body is kept in HTTPError.
const maxErrorBody = 512

// HTTPError describes a failed request: either a transport failure (StatusCode
// is 0 and Err is set) or a non-success response status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, e.ErrorClass, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s error (status %d): %s",
			e.Method, e.URL, e.ErrorClass, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s error (status %d)",
		e.Method, e.URL, e.ErrorClass, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 if err does not
// wrap an HTTPError with a response status.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// newStatusError builds an HTTPError from a non-success response, keeping a
// short prefix of the body as the message.
func newStatusError(resp *http.Response) *HTTPError {
	msg := resp.Status
	if resp.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if s := strings.TrimSpace(string(body)); s != "" {
			msg = s
		}
	}
	return &HTTPError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    msg,
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx won't get better by asking again
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
