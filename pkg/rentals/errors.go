package rentals

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
)

// ErrorKind classifies every failure the client surfaces.
type ErrorKind string

// Error kinds.
const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindServer       ErrorKind = "server"
	KindNetwork      ErrorKind = "network"
	KindClient       ErrorKind = "client"
)

// Error is the normalized error envelope produced by the HTTP layer.
type Error struct {
	Kind       ErrorKind `json:"kind"                  yaml:"kind"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Message    string    `json:"message"               yaml:"message"`
	RawBody    []byte    `json:"-"                     yaml:"-"`
	Err        error     `json:"-"                     yaml:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status: %d)", msg, e.StatusCode)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrForbidden) works
// for any forbidden error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Message == "" && t.StatusCode == 0 && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrServer       = &Error{Kind: KindServer}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrClient       = &Error{Kind: KindClient}
)

// Common static errors that can be wrapped with context.
var (
	ErrVehicleIDRequired    = errors.New("vehicle id is required")
	ErrBookingIDRequired    = errors.New("booking id is required")
	ErrInvalidVehicleStatus = errors.New("invalid vehicle status")
	ErrInvalidDateRange     = errors.New("end date must be after start date")
	ErrNoImages             = errors.New("at least one image is required")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrEmptyResponse        = errors.New("empty response body")
)

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

// errorBody is every error shape the services are known to send.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Title   string `json:"title"`
}

// ParseErrorResponse builds the normalized error for a non-2xx response. The
// message is the first non-empty of message, error or title.
func ParseErrorResponse(status int, body []byte) *Error {
	return &Error{
		Kind:       KindForStatus(status),
		StatusCode: status,
		Message:    displayMessage(status, body),
		RawBody:    body,
	}
}

func displayMessage(status int, body []byte) string {
	var parsed errorBody

	err := json.Unmarshal(body, &parsed)
	if err == nil {
		for _, candidate := range []string{parsed.Message, parsed.Error, parsed.Title} {
			if strings.TrimSpace(candidate) != "" {
				return candidate
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if err != nil && text != "" && len(text) <= constants.MaxErrorMessageLength && !strings.HasPrefix(text, "<") {
		return text
	}

	if statusText := http.StatusText(status); statusText != "" {
		return statusText
	}

	return "request failed"
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "service unreachable", Err: err}
}

// NewClientError wraps a failure to build the request.
func NewClientError(message string, err error) *Error {
	return &Error{Kind: KindClient, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" if err is not a normalized error.
func KindOf(err error) ErrorKind {
	rentalsErr := &Error{}
	if errors.As(err, &rentalsErr) {
		return rentalsErr.Kind
	}

	return ""
}

// MessageOf returns the displayable message of err.
func MessageOf(err error) string {
	rentalsErr := &Error{}
	if errors.As(err, &rentalsErr) && rentalsErr.Message != "" {
		return rentalsErr.Message
	}

	if err == nil {
		return ""
	}

	return err.Error()
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return KindOf(err) == KindForbidden
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNetwork checks if the error is a network error.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}
