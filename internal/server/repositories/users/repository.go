// Package users declares the repository contract for the users table.
package users

import (
	"context"

	"github.com/assimetria-ai/brix/internal/server/models"
)

// Repository defines operations for creating and resolving user accounts.
type Repository interface {
	// Create inserts a new user and returns the stored row. PasswordHash may
	// be empty for OAuth-only accounts.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByID resolves a user by primary key. Returns common.ErrorNotFound
	// when absent.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail resolves a user by email, case-insensitively.
	// Returns common.ErrorNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// VerifyEmail marks the user's email address as verified.
	VerifyEmail(ctx context.Context, id string) error
}
