package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const errInvalidCredentials = "invalid email or password"

// StoreAuthProvider implements providers.AuthProvider on top of the data
// store. Passwords are bcrypt hashed, sessions are stored rows referenced by
// signed tokens, and every session change is published on the event bus.
type StoreAuthProvider struct {
	credentials repositories.CredentialRepository
	sessions    repositories.SessionRepository
	bus         providers.EventBus
	tokens      *TokenManager
	ttl         time.Duration
	logger      zerolog.Logger
	now         func() time.Time
	hashCost    int
}

var _ providers.AuthProvider = (*StoreAuthProvider)(nil)

// NewStoreAuthProvider creates a store-backed auth provider
func NewStoreAuthProvider(
	credentials repositories.CredentialRepository,
	sessions repositories.SessionRepository,
	bus providers.EventBus,
	tokens *TokenManager,
	ttl time.Duration,
	logger zerolog.Logger,
) *StoreAuthProvider {
	return &StoreAuthProvider{
		credentials: credentials,
		sessions:    sessions,
		bus:         bus,
		tokens:      tokens,
		ttl:         ttl,
		logger:      logger.With().Str("component", "auth").Logger(),
		now:         time.Now,
		hashCost:    bcrypt.DefaultCost,
	}
}

// SignInWithPassword verifies the credentials and issues a new session
func (p *StoreAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error) {
	credential, err := p.credentials.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewAuthError(errInvalidCredentials, nil)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewAuthError(errInvalidCredentials, nil)
	}

	now := p.now().UTC()
	session := &entities.Session{
		ID:        uuid.New().String(),
		UserID:    credential.UserID,
		Email:     credential.Email,
		ExpiresAt: now.Add(p.ttl),
		CreatedAt: now,
	}

	token, err := p.tokens.Issue(session.ID, session.UserID, session.Email, session.ExpiresAt)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue session token", err)
	}

	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	session.Token = token

	p.publish(ctx, entities.SessionEventSignedIn, session.ID, session.UserID)
	p.logger.Info().Str("user_id", session.UserID).Str("session_id", session.ID).Msg("session issued")
	return session, nil
}

// SignUp registers a credential and returns the new identity's ID
func (p *StoreAuthProvider) SignUp(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return "", apperrors.NewInternalError("failed to hash password", err)
	}

	credential := &entities.Credential{
		UserID:       uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.credentials.Create(ctx, credential); err != nil {
		return "", err
	}

	p.logger.Info().Str("user_id", credential.UserID).Msg("credential registered")
	return credential.UserID, nil
}

// RemoveAccount deletes the credential registered for userID
func (p *StoreAuthProvider) RemoveAccount(ctx context.Context, userID string) error {
	if err := p.credentials.Delete(ctx, userID); err != nil {
		return err
	}
	p.logger.Info().Str("user_id", userID).Msg("credential removed")
	return nil
}

// SignOut revokes the session behind token. Unknown or malformed tokens
// and already revoked sessions are not an error.
func (p *StoreAuthProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Inspect(token)
	if err != nil {
		return nil
	}

	deleted, err := p.sessions.Delete(ctx, claims.SessionID)
	if err != nil {
		return err
	}
	if deleted {
		p.publish(ctx, entities.SessionEventSignedOut, claims.SessionID, claims.Subject)
		p.logger.Info().Str("user_id", claims.Subject).Str("session_id", claims.SessionID).Msg("session revoked")
	}
	return nil
}

// GetSession resolves a token to its live session
func (p *StoreAuthProvider) GetSession(ctx context.Context, token string) (*entities.Session, error) {
	claims, err := p.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.NewAuthError("session expired", err)
		}
		return nil, apperrors.NewAuthError("invalid session token", err)
	}

	session, err := p.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewAuthError("no active session", nil)
		}
		return nil, err
	}
	if session.Expired(p.now()) {
		return nil, apperrors.NewAuthError("session expired", nil)
	}

	session.Token = token
	return session, nil
}

// Subscribe delivers session-change events until ctx is cancelled
func (p *StoreAuthProvider) Subscribe(ctx context.Context) (<-chan *entities.SessionEvent, error) {
	return p.bus.Subscribe(ctx, providers.EventChannelSessions)
}

// PublishProfileUpdated notifies every session of userID that the profile changed
func (p *StoreAuthProvider) PublishProfileUpdated(ctx context.Context, userID string) error {
	return p.bus.Publish(ctx, providers.EventChannelSessions, p.event(entities.SessionEventProfileUpdated, "", userID))
}

// ExpireSessions deletes every expired session and publishes an expired
// event for each one. It returns the number of sessions removed.
func (p *StoreAuthProvider) ExpireSessions(ctx context.Context) (int, error) {
	expired, err := p.sessions.DeleteExpired(ctx, p.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		p.publish(ctx, entities.SessionEventExpired, session.ID, session.UserID)
	}
	if len(expired) > 0 {
		p.logger.Info().Int("count", len(expired)).Msg("expired sessions removed")
	}
	return len(expired), nil
}

// RunSweeper calls ExpireSessions every interval until ctx is cancelled
func (p *StoreAuthProvider) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ExpireSessions(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("session sweep failed")
			}
		}
	}
}

func (p *StoreAuthProvider) event(kind entities.SessionEventKind, sessionID, userID string) *entities.SessionEvent {
	return &entities.SessionEvent{
		ID:         uuid.New().String(),
		Kind:       kind,
		SessionID:  sessionID,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
	}
}

// publish is best effort; the session change already happened in the store
func (p *StoreAuthProvider) publish(ctx context.Context, kind entities.SessionEventKind, sessionID, userID string) {
	if err := p.bus.Publish(ctx, providers.EventChannelSessions, p.event(kind, sessionID, userID)); err != nil {
		p.logger.Warn().Err(err).Str("kind", string(kind)).Str("session_id", sessionID).Msg("failed to publish session event")
	}
}
