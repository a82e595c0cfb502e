package providers

import (
	"context"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
)

// AuthProvider is the authentication boundary consumed by the session manager
type AuthProvider interface {
	// SignInWithPassword verifies credentials and issues a session
	SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error)

	// SignUp registers a credential and returns the new identity's ID.
	// No session is issued.
	SignUp(ctx context.Context, email, password string) (string, error)

	// RemoveAccount withdraws a sign-up whose profile could not be created
	RemoveAccount(ctx context.Context, userID string) error

	// SignOut revokes the session behind token. Unknown tokens are not an error.
	SignOut(ctx context.Context, token string) error

	// GetSession resolves a token to its live session
	GetSession(ctx context.Context, token string) (*entities.Session, error)

	// Subscribe delivers session-change events until ctx is cancelled
	Subscribe(ctx context.Context) (<-chan *entities.SessionEvent, error)

	// PublishProfileUpdated notifies other sessions of the user that the
	// profile row changed
	PublishProfileUpdated(ctx context.Context, userID string) error
}
