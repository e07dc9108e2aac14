package driven

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
)

// ErrUserNotFound is returned when no user exists for the given id or email.
var ErrUserNotFound = errors.New("user not found")

// UserStore defines the driven port for user persistence.
type UserStore interface {
	// Create persists a new user.
	Create(ctx context.Context, user model.User) error

	// GetByID returns the user with the given id, or ErrUserNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetByEmail returns the user with the given email, or ErrUserNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
