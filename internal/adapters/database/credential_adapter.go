package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const credentialsTable = "credentials"

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = pq.ErrorCode("23505")

// CredentialAdapter implements the CredentialRepository interface
type CredentialAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCredentialAdapter creates a new credential adapter
func NewCredentialAdapter(client *postgres.Client) repositories.CredentialRepository {
	return &CredentialAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a credential. Emails are stored lower-cased.
func (a *CredentialAdapter) Create(ctx context.Context, credential *entities.Credential) error {
	credential.Email = strings.ToLower(strings.TrimSpace(credential.Email))
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	query, args, err := a.db.Insert(credentialsTable).
		Prepared(true).
		Rows(goqu.Record{
			"user_id":       credential.UserID,
			"email":         credential.Email,
			"password_hash": credential.PasswordHash,
			"created_at":    credential.CreatedAt,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("an account with this email already exists")
		}
		return apperrors.NewStoreError("failed to create credential", err)
	}
	return nil
}

// GetByEmail retrieves a credential by email
func (a *CredentialAdapter) GetByEmail(ctx context.Context, email string) (*entities.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	query, args, err := a.db.From(credentialsTable).
		Prepared(true).
		Select("user_id", "email", "password_hash", "created_at").
		Where(goqu.Ex{"email": email}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	credential := &entities.Credential{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&credential.UserID,
		&credential.Email,
		&credential.PasswordHash,
		&credential.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("credential for %s not found", email))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get credential", err)
	}
	return credential, nil
}

// Delete removes the credential of userID
func (a *CredentialAdapter) Delete(ctx context.Context, userID string) error {
	query, args, err := a.db.Delete(credentialsTable).
		Prepared(true).
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStoreError("failed to delete credential", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
