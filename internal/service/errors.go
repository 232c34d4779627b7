package service

import "errors"

// Errors returned by SessionGuard and Reconciler.  Handlers map them to HTTP
// statuses; anything else is an internal failure.
var (
	// ErrUnauthorized covers missing, malformed, forged and expired access
	// credentials as well as failed logins.  Callers cannot tell them apart.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the identity is valid but lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNoRefreshToken means the request carried no refresh token at all.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrInvalidRefreshToken means no account currently holds the token.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredSession means the stored token failed verification; it has
	// been cleared server-side.
	ErrExpiredSession = errors.New("session expired")
	// ErrConflict means the identity is already registered.
	ErrConflict = errors.New("identity already in use")
	// ErrValidation wraps field-level input errors.
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries the offending fields alongside ErrValidation.
type ValidationError struct {
	Fields error
}

func (e *ValidationError) Error() string { return ErrValidation.Error() + ": " + e.Fields.Error() }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Fields: err}
}
