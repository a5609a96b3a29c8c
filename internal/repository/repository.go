package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create active user with the role
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, role string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Activate or deactivate user, returns updated user
	// If user not found must return apperrors.ErrUserNotFound
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
}

// Storage gives access to repositories sharing one connection or transaction
type Storage interface {
	User() UserRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
