package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies every failure that leaves the Client.
type Kind string

const (
	KindAuthRequired Kind = "auth_required"
	KindAuthExpired  Kind = "auth_expired"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation_error"
	KindServer       Kind = "server_error"
	KindNetwork      Kind = "network_error"
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
	KindUnknown      Kind = "unknown"
)

var (
	// ErrSuperseded is the cancellation cause of a request replaced by a newer identical one.
	ErrSuperseded = errors.New("session: request superseded by an identical request")
	// ErrCancelled is the cancellation cause used by CancelAll.
	ErrCancelled = errors.New("session: request cancelled")
	// ErrTimeout is the cancellation cause used when the client timeout elapses.
	ErrTimeout = errors.New("session: request timed out")

	errNoRefreshToken = errors.New("session: no refresh token")
)

// FieldError is one entry of a 422 validation response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type returned by Client operations.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Fields     []FieldError
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = defaultMessage(e.Kind)
	}
	if e.Kind == KindValidation {
		message = "Validation error: " + message
	}
	if e.Cause != nil && (e.Kind == KindNetwork || e.Kind == KindUnknown) {
		return fmt.Sprintf("%s: %v", message, e.Cause)
	}
	return message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatusCode returns the status a gateway should answer with for this error.
func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindAuthRequired, KindAuthExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNetwork:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindAuthRequired:
		return "Authentication required. Please login."
	case KindAuthExpired:
		return "Session expired. Please login again."
	case KindForbidden:
		return "You do not have permission to perform this action."
	case KindNotFound:
		return "The requested resource was not found."
	case KindValidation:
		return "invalid input"
	case KindServer:
		return "Server error. Please try again later."
	case KindNetwork:
		return "Network error. Please check your internet connection."
	case KindTimeout:
		return "Request timed out. Please try again."
	case KindCancelled:
		return "Request cancelled"
	default:
		return "An unexpected error occurred."
	}
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: message, Cause: cause}
}

// NewValidationError builds a ValidationError whose message lists every field pair.
func NewValidationError(fields []FieldError) *Error {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusUnprocessableEntity,
		Message:    strings.Join(parts, ", "),
		Fields:     fields,
	}
}

// KindOf reports the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var sessionErr *Error
	if errors.As(err, &sessionErr) && sessionErr != nil {
		return sessionErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var sessionErr *Error
	if !errors.As(err, &sessionErr) || sessionErr == nil {
		return false
	}
	return sessionErr.Kind == kind
}
