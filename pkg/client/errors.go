package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
)

// ErrorClass is the closed set of failure classifications. Every failed
// operation resolves to exactly one class.
type ErrorClass string

const (
	// ClassAuth represents an invalid or missing API key (401).
	ClassAuth ErrorClass = "auth"

	// ClassNotFound represents a missing resource (404).
	ClassNotFound ErrorClass = "not_found"

	// ClassValidation represents a rejected request (400) or invalid input caught locally.
	ClassValidation ErrorClass = "validation"

	// ClassRateLimited represents upstream throttling (429). Never retried automatically.
	ClassRateLimited ErrorClass = "rate_limited"

	// ClassTimeout represents a request timeout (408, client timeout, deadline).
	ClassTimeout ErrorClass = "timeout"

	// ClassServerError represents 5xx responses.
	ClassServerError ErrorClass = "server_error"

	// ClassConnectionFailure represents DNS failures and refused connections.
	ClassConnectionFailure ErrorClass = "connection_failure"

	// ClassUnknown represents everything else.
	ClassUnknown ErrorClass = "unknown"
)

// DefaultRetryAfterSeconds is used when a 429 carries no usable Retry-After header.
const DefaultRetryAfterSeconds = 60

// defaultErrorMessage is used when an error envelope carries no message.
const defaultErrorMessage = "API request failed"

// APIError represents a classified SkyFi failure.
type APIError struct {
	Class      ErrorClass
	StatusCode int
	Message    string

	// Code is the upstream error code from an error envelope, if any.
	Code string

	// RetryAfterSeconds is set for ClassRateLimited.
	RetryAfterSeconds int

	// Attempts is the number of HTTP attempts made before giving up.
	Attempts int

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SkyFi %s error", e.Class)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Class == ClassRateLimited {
		fmt.Fprintf(&sb, " (retry after %ds)", e.RetryAfterSeconds)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a ClassValidation error for invalid input.
func NewValidationError(message string, err error) *APIError {
	return &APIError{Class: ClassValidation, Message: message, Err: err}
}

// NewNotFoundError returns a ClassNotFound error.
func NewNotFoundError(message string, err error) *APIError {
	return &APIError{Class: ClassNotFound, Message: message, Err: err}
}

// ClassOf returns the classification of err.
// Errors that are not an *APIError classify as ClassUnknown; nil returns "".
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ClassUnknown
}

// IsClass reports whether err is classified as class.
func IsClass(err error, class ErrorClass) bool {
	return err != nil && ClassOf(err) == class
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ClassServerError, ClassTimeout:
		return true
	default:
		// Auth, NotFound, Validation and RateLimited go back to the caller,
		// which owns any backoff (e.g. RetryAfterSeconds).
		return false
	}
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ClassAuth
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusBadRequest:
		return ClassValidation
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status == http.StatusRequestTimeout:
		return ClassTimeout
	case status >= 500:
		return ClassServerError
	default:
		return ClassUnknown
	}
}

// classifyResponse builds the error for a non-2xx response.
func classifyResponse(status int, header http.Header, body []byte) *APIError {
	message, code := extractErrorDetails(body)
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = defaultErrorMessage
	}

	apiErr := &APIError{
		Class:      classifyStatus(status),
		StatusCode: status,
		Message:    message,
		Code:       code,
	}
	if apiErr.Class == ClassRateLimited {
		apiErr.RetryAfterSeconds = parseRetryAfter(header.Get("Retry-After"))
	}
	return apiErr
}

// parseRetryAfter parses an integer number of seconds, falling back to
// DefaultRetryAfterSeconds when absent or unparseable.
func parseRetryAfter(value string) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return DefaultRetryAfterSeconds
	}
	return seconds
}

// classifyTransportError maps a failure that produced no HTTP response.
func classifyTransportError(err error) *APIError {
	switch {
	case errors.Is(err, context.Canceled):
		return &APIError{Class: ClassUnknown, Message: "request cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Class: ClassTimeout, Message: "request deadline exceeded", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &APIError{Class: ClassConnectionFailure, Message: "DNS lookup failed", Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &APIError{Class: ClassConnectionFailure, Message: "connection refused", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Class: ClassTimeout, Message: "request timed out", Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &APIError{Class: ClassConnectionFailure, Message: "connection failed", Err: err}
	}

	return &APIError{Class: ClassUnknown, Message: "request failed", Err: err}
}

// classifyEnvelopeCode maps an error envelope code onto a non-retryable class.
func classifyEnvelopeCode(code string) ErrorClass {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "UNAUTHORIZED", "AUTH_ERROR", "INVALID_API_KEY", "401":
		return ClassAuth
	case "NOT_FOUND", "404":
		return ClassNotFound
	case "VALIDATION_ERROR", "INVALID_REQUEST", "BAD_REQUEST", "400":
		return ClassValidation
	case "RATE_LIMITED", "RATE_LIMIT_EXCEEDED", "429":
		return ClassRateLimited
	default:
		return ClassUnknown
	}
}
