// Package apperr defines the error taxonomy shared by the repositories,
// services and HTTP handlers of the soundpad server.
//
// Lower layers wrap one of the sentinel errors below with %w and add context;
// the HTTP layer classifies the result with errors.Is and maps it to a status
// code via Status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput reports empty or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAuthFailed reports a bad username/password pair.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUnauthenticated reports a missing or unknown session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrExpired reports a session whose sliding window has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrNotFound covers both missing resources and resources owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a duplicate username.
	ErrAlreadyExists = errors.New("already exists")
	// ErrIO reports a storage or filesystem failure.
	ErrIO = errors.New("io failure")
)

// Invalid wraps ErrInvalidInput with a message the client can act on.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// IO wraps ErrIO around cause, keeping cause reachable via errors.Is/As.
func IO(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, cause)
}

// Status maps err to the HTTP status code the handlers respond with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthFailed):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe text for err. Validation errors keep their
// detail, everything else collapses to a fixed phrase so internals and the
// existence of other users' resources do not leak.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, ErrAuthFailed):
		return "invalid credentials"
	case errors.Is(err, ErrExpired):
		return "session expired"
	case errors.Is(err, ErrUnauthenticated):
		return "not authenticated"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrAlreadyExists):
		return "user already exists"
	default:
		return "internal error"
	}
}
