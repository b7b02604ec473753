// Package users declares the server-side repository contract for the user
// store. The auth core never creates identities on its own; it only reads
// them and updates the stored password hash.
package users

import (
	"context"

	"github.com/akorchagin/authd/internal/server/models"
)

// Repository defines the user-store operations the auth core depends on.
type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email.
	// Implementations should return common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePasswordHash replaces the stored password hash for userID.
	UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error
}
