package rest

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures a resource request can end with.
type ErrorKind string

const (
	MethodNotAllowed      ErrorKind = "MethodNotAllowed"
	MisconfiguredResource ErrorKind = "MisconfiguredResource"
	BadPayload            ErrorKind = "BadPayload"
	Unauthenticated       ErrorKind = "Unauthenticated"
	Unauthorized          ErrorKind = "Unauthorized"
	NotFound              ErrorKind = "NotFound"
	MultipleRecordsFound  ErrorKind = "MultipleRecordsFound"
	DuplicateRecord       ErrorKind = "DuplicateRecord"
	ValidationFailed      ErrorKind = "ValidationFailed"
	RateLimited           ErrorKind = "RateLimited"
	Internal              ErrorKind = "Internal"
)

// StatusCode returns the HTTP status reported for the kind.
func (k ErrorKind) StatusCode() int {
	switch k {
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case MisconfiguredResource:
		return http.StatusFailedDependency
	case BadPayload, ValidationFailed:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case MultipleRecordsFound, DuplicateRecord:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// APIError implements the Error() interface. Body is what the client
// sees under the errors key: a message, a list of messages, or a map of
// field names to messages.
type APIError struct {
	Kind       ErrorKind `json:"-"`
	StatusCode int       `json:"-"`
	Body       any       `json:"errors"`

	cause error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.cause.Error())
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Body)
}

// Unwrap exposes the underlying failure of internal errors.
func (e *APIError) Unwrap() error { return e.cause }

// NewError constructs an error of the given kind.
func NewError(kind ErrorKind, body any) *APIError {
	return &APIError{
		Kind:       kind,
		StatusCode: kind.StatusCode(),
		Body:       body,
	}
}

// Errorf constructs an error of the given kind with a formatted
// message body.
func Errorf(kind ErrorKind, format string, args ...any) *APIError {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// InternalError hides an unexpected failure behind a generic message.
func InternalError(err error) *APIError {
	return &APIError{
		Kind:       Internal,
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal server error",
		cause:      err,
	}
}

// AsAPIError returns the API error carried by err, or wraps err as an
// internal error.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError(err)
}
