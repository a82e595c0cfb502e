package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const sessionsTable = "sessions"

var sessionColumns = []interface{}{"id", "user_id", "email", "expires_at", "created_at"}

// SessionAdapter implements the SessionRepository interface
type SessionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSessionAdapter creates a new session adapter
func NewSessionAdapter(client *postgres.Client) repositories.SessionRepository {
	return &SessionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create stores an issued session
func (a *SessionAdapter) Create(ctx context.Context, session *entities.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query, args, err := a.db.Insert(sessionsTable).
		Prepared(true).
		Rows(goqu.Record{
			"id":         session.ID,
			"user_id":    session.UserID,
			"email":      session.Email,
			"expires_at": session.ExpiresAt,
			"created_at": session.CreatedAt,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStoreError("failed to create session", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (a *SessionAdapter) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	query, args, err := a.db.From(sessionsTable).
		Prepared(true).
		Select(sessionColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	session, err := scanSession(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get session", err)
	}
	return session, nil
}

// Delete removes a session and reports whether it existed
func (a *SessionAdapter) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := a.db.Delete(sessionsTable).
		Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewStoreError("failed to delete session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreError("failed to read affected rows", err)
	}
	return affected > 0, nil
}

// DeleteExpired removes every session that expired at or before now and
// returns the removed rows
func (a *SessionAdapter) DeleteExpired(ctx context.Context, now time.Time) ([]*entities.Session, error) {
	query, args, err := a.db.Delete(sessionsTable).
		Prepared(true).
		Where(goqu.C("expires_at").Lte(now)).
		Returning(sessionColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build delete query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to delete expired sessions", err)
	}
	defer rows.Close()

	var expired []*entities.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("failed to scan session", err)
		}
		expired = append(expired, session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("error iterating sessions", err)
	}
	return expired, nil
}

func scanSession(row rowScanner) (*entities.Session, error) {
	session := &entities.Session{}
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Email,
		&session.ExpiresAt,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return session, nil
}
