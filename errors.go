package aichef

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingCredential is returned when a turn is attempted before the user supplied an API key.
	ErrMissingCredential = errors.New("missing API key: set one before sending a message")

	// ErrBudgetExceeded is returned when the session usage reached the configured ceiling.
	ErrBudgetExceeded = errors.New("usage ceiling reached: reset the session to continue")
)

// ErrorKind categorises completion service failures.
type ErrorKind int8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindRateLimit
	ErrorKindAuth
	ErrorKindTransient
	ErrorKindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindRateLimit:
		return "rate_limit"
	case ErrorKindAuth:
		return "auth"
	case ErrorKindTransient:
		return "transient"
	case ErrorKindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// ServiceError is a classified failure of the completion service.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("completion service error (%s): %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("completion service error (%s): %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("completion service error (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("completion service error (%s): status %d", e.Kind, e.StatusCode)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps cause with a kind derived from the HTTP status code.
func NewServiceError(statusCode int, message string, cause error) *ServiceError {
	return &ServiceError{
		Kind:       KindForStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Err:        cause,
	}
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorKindAuth
	case statusCode == http.StatusRequestTimeout, statusCode >= 500:
		return ErrorKindTransient
	case statusCode >= 400:
		return ErrorKindBadRequest
	default:
		return ErrorKindUnknown
	}
}

// KindOf returns the kind of a classified error, or ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindUnknown
}

// IsRateLimit reports whether err is a rate limit reported by the completion service.
func IsRateLimit(err error) bool {
	return KindOf(err) == ErrorKindRateLimit
}

// statusCoder is implemented by AWS smithy response errors.
type statusCoder interface {
	HTTPStatusCode() int
}

// ClassifyError turns an arbitrary client error into a *ServiceError. Already classified errors are returned as is.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: ErrorKindTransient, Message: "request timeout", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ServiceError{Kind: ErrorKindTransient, Message: "request canceled", Err: err}
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() > 0 {
		return NewServiceError(sc.HTTPStatusCode(), "", err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"), strings.Contains(lower, "quota"):
		return &ServiceError{Kind: ErrorKindRateLimit, StatusCode: http.StatusTooManyRequests, Err: err}
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "invalid api key"):
		return &ServiceError{Kind: ErrorKindAuth, Err: err}
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "timeout"), strings.Contains(lower, "eof"):
		return &ServiceError{Kind: ErrorKindTransient, Err: err}
	default:
		return &ServiceError{Kind: ErrorKindUnknown, Err: err}
	}
}
