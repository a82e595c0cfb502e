package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// WorkspaceFactory builds an unstarted workspace
type WorkspaceFactory func() *Workspace

// WorkspaceRegistry keys workspaces by session token. Unknown tokens are
// restored from the auth boundary; workspaces whose session ended are evicted.
type WorkspaceRegistry struct {
	auth    providers.AuthProvider
	factory WorkspaceFactory
	logger  zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewWorkspaceRegistry creates an empty registry
func NewWorkspaceRegistry(auth providers.AuthProvider, factory WorkspaceFactory, logger zerolog.Logger) *WorkspaceRegistry {
	return &WorkspaceRegistry{
		auth:       auth,
		factory:    factory,
		logger:     logger.With().Str("component", "workspace_registry").Logger(),
		workspaces: make(map[string]*Workspace),
	}
}

// Len returns the number of live workspaces
func (r *WorkspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// SignUp registers a new account without signing it in
func (r *WorkspaceRegistry) SignUp(ctx context.Context, email, password string, fields ProfileFields) (*entities.User, error) {
	return r.factory().Session.SignUp(ctx, email, password, fields)
}

// SignIn signs in on a fresh workspace and registers it under the new token
func (r *WorkspaceRegistry) SignIn(ctx context.Context, email, password, location string) (string, *Workspace, error) {
	ws := r.factory()
	if err := ws.Start(ctx, ""); err != nil {
		ws.Close()
		return "", nil, err
	}
	if _, err := ws.Session.SignIn(ctx, email, password, location); err != nil {
		ws.Close()
		return "", nil, err
	}

	token := ws.Session.Token()
	r.register(token, ws)
	return token, ws, nil
}

// Resolve returns the workspace for token, restoring it on a miss
func (r *WorkspaceRegistry) Resolve(ctx context.Context, token string) (*Workspace, error) {
	if token == "" {
		return nil, apperrors.NewAuthError("no active session", nil)
	}

	r.mu.Lock()
	ws, ok := r.workspaces[token]
	r.mu.Unlock()

	if ok {
		if ws.Session.State() == AuthStateAuthenticated {
			return ws, nil
		}
		r.evict(token, ws)
		return nil, apperrors.NewAuthError("no active session", nil)
	}

	ws = r.factory()
	if err := ws.Start(ctx, token); err != nil {
		ws.Close()
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.workspaces[token]; ok {
		r.mu.Unlock()
		ws.Close()
		return existing, nil
	}
	r.mu.Unlock()

	r.register(token, ws)
	return ws, nil
}

// SignOut ends token's session. Unknown tokens are revoked directly so the
// call stays idempotent.
func (r *WorkspaceRegistry) SignOut(ctx context.Context, token string) error {
	r.mu.Lock()
	ws, ok := r.workspaces[token]
	r.mu.Unlock()

	if !ok {
		return r.auth.SignOut(ctx, token)
	}

	err := ws.Session.SignOut(ctx)
	r.evict(token, ws)
	return err
}

// Close closes every workspace
func (r *WorkspaceRegistry) Close() {
	r.mu.Lock()
	workspaces := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range workspaces {
		ws.Close()
	}
}

func (r *WorkspaceRegistry) register(token string, ws *Workspace) {
	ws.Session.OnIdentityChange(func(ctx context.Context, user *entities.User) {
		if user == nil {
			r.evict(token, ws)
		}
	})

	r.mu.Lock()
	r.workspaces[token] = ws
	r.mu.Unlock()
}

func (r *WorkspaceRegistry) evict(token string, ws *Workspace) {
	r.mu.Lock()
	current, ok := r.workspaces[token]
	if ok && current == ws {
		delete(r.workspaces, token)
	}
	r.mu.Unlock()

	if ok && current == ws {
		ws.Close()
		r.logger.Debug().Msg("workspace evicted")
	}
}
