// Package server provides the HTTP REST API for the bid pilot.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Sentinel auth errors. Login failures are deliberately indistinguishable
// from each other so the API never confirms whether an email is
// registered.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("current password is incorrect")
)

// EmailTakenError reports a registration attempt against an existing
// email.
type EmailTakenError struct {
	Email string
}

func (e *EmailTakenError) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// UserNotFoundError reports an operation against a missing account.
type UserNotFoundError struct {
	UserID uuid.UUID
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// HTTPStatus maps auth errors to response codes. Anything unrecognized is
// an internal error.
func HTTPStatus(err error) int {
	var taken *EmailTakenError
	var missing *UserNotFoundError
	switch {
	case errors.As(err, &taken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrPasswordMismatch):
		return http.StatusUnauthorized
	case errors.As(err, &missing):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
