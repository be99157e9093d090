package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/bid-pilot/internal/config"
	"github.com/jonathan/bid-pilot/internal/db"
	"github.com/jonathan/bid-pilot/internal/types"
)

// DBClient is the user persistence surface UserService depends on.
// *db.DB satisfies it.
type DBClient interface {
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, name, email, phone string) (uuid.UUID, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// UserService implements account registration, login, and password
// rotation over the user store.
type UserService struct {
	db        DBClient
	passwords *config.PasswordConfig
}

// NewUserService creates a UserService.
func NewUserService(db DBClient, passwords *config.PasswordConfig) *UserService {
	return &UserService{db: db, passwords: passwords}
}

// apiUser strips the stored user down to its API view; the password hash
// never crosses this boundary.
func apiUser(u *db.User) *types.User {
	if u == nil {
		return nil
	}
	return &types.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		PasswordSet: u.PasswordSet,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Register creates an account and sets its password. The account row is
// created first and the hash attached second, so a hashing or storage
// failure leaves an account that cannot log in rather than one with a
// wrong password.
func (s *UserService) Register(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	exists, err := s.db.CheckEmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, &EmailTakenError{Email: req.Email}
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	userID, err := s.db.CreateUser(ctx, req.Name, req.Email, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if err := s.db.UpdatePassword(ctx, userID, hash); err != nil {
		return nil, fmt.Errorf("setting password: %w", err)
	}

	created, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading created user: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("created user not found: %s", userID)
	}
	return apiUser(created), nil
}

// Login verifies credentials. Unknown email, wrong password, and an
// account without a password all return the same error.
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*types.User, error) {
	u, err := s.db.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("loading user by email: %w", err)
	}
	if u == nil || !u.PasswordSet || !s.passwords.VerifyPassword(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return apiUser(u), nil
}

// UpdatePassword rotates an account password after re-verifying the
// current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return &UserNotFoundError{UserID: userID}
	}
	if !s.passwords.VerifyPassword(currentPassword, u.PasswordHash) {
		return ErrPasswordMismatch
	}

	hash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}
	if err := s.db.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("storing new password: %w", err)
	}
	return nil
}
