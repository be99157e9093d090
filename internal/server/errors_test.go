package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"email taken", &EmailTakenError{Email: "dana@example.com"}, http.StatusConflict},
		{"invalid credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"password mismatch", ErrPasswordMismatch, http.StatusUnauthorized},
		{"user not found", &UserNotFoundError{UserID: userID}, http.StatusNotFound},
		{"wrapped sentinel", fmt.Errorf("login: %w", ErrInvalidCredentials), http.StatusUnauthorized},
		{"wrapped struct error", fmt.Errorf("register: %w", &EmailTakenError{Email: "x@y.z"}), http.StatusConflict},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAuthErrorMessages(t *testing.T) {
	assert.EqualError(t, &EmailTakenError{Email: "dana@example.com"}, "email already registered: dana@example.com")

	userID := uuid.New()
	assert.EqualError(t, &UserNotFoundError{UserID: userID}, "user not found: "+userID.String())

	// Login failures never name the email, so the API cannot be used to
	// enumerate accounts.
	assert.NotContains(t, ErrInvalidCredentials.Error(), "@")
}
