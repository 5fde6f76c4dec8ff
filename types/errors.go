package types

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed profile operation. It is shared by the server,
// which maps kinds to status codes, and the client, which maps them back.
type ErrorKind string

const (
	KindUnauthorized    ErrorKind = "unauthorized"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindNotFound        ErrorKind = "not_found"
	KindStorage         ErrorKind = "storage_error"
	KindRateLimited     ErrorKind = "rate_limited"
	KindTooLarge        ErrorKind = "too_large"
	KindTransport       ErrorKind = "transport_error"
)

// HTTPStatus returns the status code a kind is reported with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus maps a response status back to a kind.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadRequest:
		return KindInvalidArgument
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusRequestEntityTooLarge:
		return KindTooLarge
	default:
		return KindStorage
	}
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// APIError is a failed API call as seen by a client.
type APIError struct {
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}
