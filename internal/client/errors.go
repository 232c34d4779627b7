package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionEnded means the server rejected both the access token and
	// the refresh attempt.  All local identity, cart and favorite state has
	// been cleared; the user must sign in again.
	ErrSessionEnded = errors.New("session ended")
	// ErrNotFound is returned for a cart line or favorite that does not
	// exist, locally or on the server.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when adding a favorite twice or registering a
	// taken identity.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned for rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned for input rejected before or by the server.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError is a non-2xx response.  It matches the sentinels above by status
// so callers can use errors.Is without looking at codes.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Code)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrInvalidInput:
		return e.Status == http.StatusBadRequest
	}
	return false
}
