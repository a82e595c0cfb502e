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

const usersTable = "users"

var userColumns = []interface{}{"id", "email", "name", "role", "location", "created_at", "updated_at"}

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new profile row
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	var name interface{}
	if user.Name != nil {
		name = *user.Name
	}

	record := goqu.Record{
		"id":         user.ID,
		"email":      user.Email,
		"name":       name,
		"role":       string(user.Role),
		"location":   user.Location,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}

	query, args, err := a.db.Insert(usersTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("profile %s already exists", user.ID))
		}
		return apperrors.NewStoreError("failed to create profile", err)
	}
	return nil
}

// GetByID retrieves a profile by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	query, args, err := a.db.From(usersTable).
		Prepared(true).
		Select(userColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user, err := scanUser(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("profile with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get profile", err)
	}
	return user, nil
}

// Update applies a partial update and returns the stored row
func (a *UserAdapter) Update(ctx context.Context, id string, update repositories.UserUpdate) (*entities.User, error) {
	if update.Empty() {
		return a.GetByID(ctx, id)
	}

	record := goqu.Record{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		record["name"] = *update.Name
	}
	if update.Role != nil {
		record["role"] = string(*update.Role)
	}
	if update.Location != nil {
		record["location"] = *update.Location
	}

	query, args, err := a.db.Update(usersTable).
		Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}).
		Returning(userColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build update query", err)
	}

	user, err := scanUser(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("profile with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to update profile", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*entities.User, error) {
	user := &entities.User{}
	var (
		name sql.NullString
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&name,
		&role,
		&user.Location,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = entities.Role(role)
	if name.Valid {
		user.Name = &name.String
	}
	return user, nil
}
