package repositories

import (
	"context"
	"time"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
)

// UserRepository defines the profile row operations on the users table
type UserRepository interface {
	// Create inserts a new profile row
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// Update applies a partial update and returns the stored row
	Update(ctx context.Context, id string, update UserUpdate) (*entities.User, error)
}

// UserUpdate is a partial profile update; nil fields are left untouched
type UserUpdate struct {
	Name     *string
	Role     *entities.Role
	Location *string
}

// Empty reports whether the update changes nothing
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Role == nil && u.Location == nil
}

// CredentialRepository stores the auth boundary's credentials
type CredentialRepository interface {
	// Create inserts a credential; a duplicate email is a CONFLICT error
	Create(ctx context.Context, credential *entities.Credential) error

	// GetByEmail retrieves a credential by its normalised email
	GetByEmail(ctx context.Context, email string) (*entities.Credential, error)

	// Delete removes the credential of userID. Missing rows are not an error.
	Delete(ctx context.Context, userID string) error
}

// SessionRepository stores issued sessions so they can be revoked
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]*entities.Session, error)
}
