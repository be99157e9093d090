// Package types provides type definitions for structured data used throughout the bid-pilot system.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// requestValidator is shared by every request type; validator instances
// cache struct metadata, so one is enough for the package.
var requestValidator = validator.New()

// User is the API-facing view of an operator account. The stored password
// hash never appears here; PasswordSet tells clients whether login works
// for the account yet.
type User struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	PasswordSet bool      `json:"password_set"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserRequest registers a new operator account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=1"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone,omitempty"`
}

// Validate checks the request against its field constraints.
func (r *CreateUserRequest) Validate() error { return requestValidator.Struct(r) }

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the request against its field constraints.
func (r *LoginRequest) Validate() error { return requestValidator.Struct(r) }

// LoginResponse carries the authenticated user and their fresh token.
// Register and login share this shape.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// UpdatePasswordRequest rotates an account password. The current password
// is re-verified server side before the new one is accepted.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// Validate checks the request against its field constraints.
func (r *UpdatePasswordRequest) Validate() error { return requestValidator.Struct(r) }
