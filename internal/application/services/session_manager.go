package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// AuthState is the session manager's state
type AuthState string

const (
	AuthStateUnauthenticated AuthState = "unauthenticated"
	AuthStateAuthenticating  AuthState = "authenticating"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateSigningOut      AuthState = "signing_out"
)

// ProfileFields are supplied at registration
type ProfileFields struct {
	Name     *string
	Role     entities.Role
	Location string
}

// IdentityListener is called after the identity changes. user is nil once
// the identity is cleared.
type IdentityListener func(ctx context.Context, user *entities.User)

// SessionManager owns the current identity of one client and mediates
// credential and profile operations against the auth boundary and the
// users table.
type SessionManager struct {
	auth     providers.AuthProvider
	users    repositories.UserRepository
	notifier providers.Notifier
	logger   zerolog.Logger

	mu        sync.RWMutex
	state     AuthState
	session   *entities.Session
	identity  *entities.User
	listeners []IdentityListener
	cancel    context.CancelFunc
}

// NewSessionManager creates an unauthenticated session manager
func NewSessionManager(auth providers.AuthProvider, users repositories.UserRepository, notifier providers.Notifier, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		auth:     auth,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		state:    AuthStateUnauthenticated,
	}
}

// OnIdentityChange registers a listener for identity changes
func (m *SessionManager) OnIdentityChange(listener IdentityListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// State returns the current state
func (m *SessionManager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns a copy of the current identity, or nil
func (m *SessionManager) Identity() *entities.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity.Clone()
}

// Token returns the current session token, or ""
func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// SessionID returns the current session's ID, or ""
func (m *SessionManager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// Start subscribes to session-change events until Close and, when token is
// non-empty, restores that session and loads its profile.
func (m *SessionManager) Start(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return apperrors.NewPreconditionError("session manager already started")
	}
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.mu.Unlock()

	events, err := m.auth.Subscribe(subCtx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("session events unavailable")
	} else {
		go m.watch(subCtx, events)
	}

	if token == "" {
		return nil
	}
	return m.restore(ctx, token)
}

// Close stops the event subscription
func (m *SessionManager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *SessionManager) restore(ctx context.Context, token string) error {
	if err := m.beginAuthenticating(); err != nil {
		return err
	}

	session, err := m.auth.GetSession(ctx, token)
	if err != nil {
		return m.failAuthenticating(ctx, restoreError("unable to restore session", err))
	}

	user, err := m.ensureProfile(ctx, session, "")
	if err != nil {
		return m.failAuthenticating(ctx, restoreError("unable to load profile", err))
	}

	m.establish(ctx, session, user)
	return nil
}

// SignIn authenticates, ensures a profile row exists, applies location to
// it and establishes the identity. A second SignIn while one is in flight
// is rejected.
func (m *SessionManager) SignIn(ctx context.Context, email, password, location string) (*entities.User, error) {
	if err := m.beginAuthenticating(); err != nil {
		return nil, err
	}

	session, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, m.failAuthenticating(ctx, asAuthError("unable to sign in", err))
	}

	user, err := m.ensureProfile(ctx, session, strings.TrimSpace(location))
	if err != nil {
		if signOutErr := m.auth.SignOut(ctx, session.Token); signOutErr != nil {
			m.logger.Warn().Err(signOutErr).Str("session_id", session.ID).Msg("failed to revoke session after profile error")
		}
		return nil, m.failAuthenticating(ctx, asAuthError("unable to sign in", err))
	}

	m.establish(ctx, session, user)
	m.logger.Info().Str("user_id", user.ID).Msg("signed in")
	return user.Clone(), nil
}

// SignUp creates a credential and its profile row. No session is
// established. When the profile cannot be stored the credential is removed
// again so the sign-up can be retried.
func (m *SessionManager) SignUp(ctx context.Context, email, password string, fields ProfileFields) (*entities.User, error) {
	if fields.Role == "" {
		fields.Role = entities.RoleIndividual
	}
	if !fields.Role.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", fields.Role))
	}

	userID, err := m.auth.SignUp(ctx, email, password)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, apperrors.NewAuthError(apperrors.MessageOf(err), err)
		}
		return nil, asAuthError("unable to sign up", err)
	}

	now := time.Now().UTC()
	user := &entities.User{
		ID:        userID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      fields.Name,
		Role:      fields.Role,
		Location:  strings.TrimSpace(fields.Location),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.users.Create(ctx, user); err != nil {
		if removeErr := m.auth.RemoveAccount(ctx, userID); removeErr != nil {
			m.logger.Error().Err(removeErr).Str("user_id", userID).Msg("failed to remove credential after profile error")
		}
		return nil, asAuthError("unable to create profile", err)
	}

	m.logger.Info().Str("user_id", userID).Str("role", string(user.Role)).Msg("signed up")
	return user.Clone(), nil
}

// SignOut revokes the session and clears the identity. Calling it without
// an identity is a no-op. The identity is cleared even when revocation
// fails; the failure is still returned.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.state != AuthStateAuthenticated {
		m.mu.Unlock()
		return nil
	}
	m.state = AuthStateSigningOut
	token := m.session.Token
	m.mu.Unlock()

	err := m.auth.SignOut(ctx, token)

	m.clear(ctx)
	if err != nil {
		m.notify(ctx, providers.NoticeError, "Sign out failed", apperrors.MessageOf(err))
		return err
	}
	m.logger.Info().Msg("signed out")
	return nil
}

// UpdateLocation persists a new location on the current identity. It
// fails with a PRECONDITION error when there is no identity.
func (m *SessionManager) UpdateLocation(ctx context.Context, location string) (*entities.User, error) {
	m.mu.RLock()
	if m.state != AuthStateAuthenticated || m.identity == nil {
		m.mu.RUnlock()
		return nil, apperrors.NewPreconditionError("no active identity")
	}
	userID := m.identity.ID
	m.mu.RUnlock()

	updated, err := m.users.Update(ctx, userID, repositories.UserUpdate{Location: &location})
	if err != nil {
		m.notify(ctx, providers.NoticeError, "Failed to update location", apperrors.MessageOf(err))
		return nil, err
	}

	if !m.replaceIdentity(updated) {
		return nil, apperrors.NewPreconditionError("identity changed during update")
	}

	if err := m.auth.PublishProfileUpdated(ctx, userID); err != nil {
		m.logger.Warn().Err(err).Msg("failed to publish profile update")
	}
	m.emit(ctx, updated)
	return updated.Clone(), nil
}

func (m *SessionManager) beginAuthenticating() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case AuthStateAuthenticating:
		return apperrors.NewAuthError("sign-in already in progress", nil)
	case AuthStateUnauthenticated:
		m.state = AuthStateAuthenticating
		return nil
	default:
		return apperrors.NewAuthError("already signed in", nil)
	}
}

func (m *SessionManager) failAuthenticating(ctx context.Context, err error) error {
	m.mu.Lock()
	m.state = AuthStateUnauthenticated
	m.session = nil
	m.identity = nil
	m.mu.Unlock()

	m.notify(ctx, providers.NoticeError, "Authentication failed", apperrors.MessageOf(err))
	return err
}

func (m *SessionManager) establish(ctx context.Context, session *entities.Session, user *entities.User) {
	m.mu.Lock()
	m.state = AuthStateAuthenticated
	m.session = session
	m.identity = user.Clone()
	m.mu.Unlock()
	m.emit(ctx, user)
}

func (m *SessionManager) clear(ctx context.Context) {
	m.mu.Lock()
	hadIdentity := m.identity != nil
	m.state = AuthStateUnauthenticated
	m.session = nil
	m.identity = nil
	m.mu.Unlock()
	if hadIdentity {
		m.emit(ctx, nil)
	}
}

// replaceIdentity swaps in a reloaded profile if it still belongs to the
// current identity
func (m *SessionManager) replaceIdentity(user *entities.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil || m.identity.ID != user.ID {
		return false
	}
	m.identity = user.Clone()
	return true
}

// ensureProfile loads the profile row for session, creating one with role
// individual when absent. A non-empty location is applied to it.
func (m *SessionManager) ensureProfile(ctx context.Context, session *entities.Session, location string) (*entities.User, error) {
	user, err := m.users.GetByID(ctx, session.UserID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		now := time.Now().UTC()
		user = &entities.User{
			ID:        session.UserID,
			Email:     session.Email,
			Role:      entities.RoleIndividual,
			Location:  location,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	if location == "" || location == user.Location {
		return user, nil
	}
	return m.users.Update(ctx, user.ID, repositories.UserUpdate{Location: &location})
}

func (m *SessionManager) watch(ctx context.Context, events <-chan *entities.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ctx, event)
		}
	}
}

func (m *SessionManager) handleEvent(ctx context.Context, event *entities.SessionEvent) {
	m.mu.RLock()
	session := m.session
	identity := m.identity
	m.mu.RUnlock()

	if session == nil || identity == nil {
		return
	}

	switch {
	case event.Ends() && event.SessionID == session.ID:
		m.logger.Info().Str("kind", string(event.Kind)).Str("session_id", session.ID).Msg("session ended externally")
		m.clear(ctx)
		m.notify(ctx, providers.NoticeInfo, "Signed out", "Your session has ended. Please sign in again.")
	case event.Kind == entities.SessionEventProfileUpdated && event.UserID == identity.ID:
		user, err := m.users.GetByID(ctx, identity.ID)
		if err != nil {
			m.logger.Warn().Err(err).Msg("failed to reload profile")
			return
		}
		if m.replaceIdentity(user) {
			m.emit(ctx, user)
		}
	}
}

func (m *SessionManager) emit(ctx context.Context, user *entities.User) {
	m.mu.RLock()
	listeners := append([]IdentityListener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, listener := range listeners {
		listener(ctx, user.Clone())
	}
}

func (m *SessionManager) notify(ctx context.Context, level providers.NoticeLevel, title, description string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, providers.Notice{Level: level, Title: title, Description: description})
}

// restoreError keeps store failures as they are and reports everything
// else as an AUTH error. An outage is not a rejected session.
func restoreError(message string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeStore) {
		return err
	}
	return asAuthError(message, err)
}

// asAuthError reports auth boundary and store failures as AUTH errors,
// keeping the original error as the cause
func asAuthError(message string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeAuth) {
		return err
	}
	return apperrors.NewAuthError(fmt.Sprintf("%s: %s", message, apperrors.MessageOf(err)), err)
}
