package database

import (
	"context"
	"time"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// NewUnavailableRepositories returns repositories whose every call fails
// with a STORE error. They stand in when the store is not configured.
func NewUnavailableRepositories() Repositories {
	return Repositories{
		Facilities:  unavailableFacilities{},
		Users:       unavailableUsers{},
		Credentials: unavailableCredentials{},
		Sessions:    unavailableSessions{},
	}
}

func errStoreNotConfigured() error {
	return apperrors.NewStoreError("data store is not configured", nil)
}

type unavailableFacilities struct{}

func (unavailableFacilities) GetByID(context.Context, string) (*entities.Facility, error) {
	return nil, errStoreNotConfigured()
}

func (unavailableFacilities) Count(context.Context, repositories.FacilityQuery) (int, error) {
	return 0, errStoreNotConfigured()
}

func (unavailableFacilities) List(context.Context, repositories.FacilityQuery) ([]*entities.Facility, error) {
	return nil, errStoreNotConfigured()
}

func (unavailableFacilities) CountByType(context.Context, string) (map[entities.FacilityType]int, error) {
	return nil, errStoreNotConfigured()
}

type unavailableUsers struct{}

func (unavailableUsers) Create(context.Context, *entities.User) error {
	return errStoreNotConfigured()
}

func (unavailableUsers) GetByID(context.Context, string) (*entities.User, error) {
	return nil, errStoreNotConfigured()
}

func (unavailableUsers) Update(context.Context, string, repositories.UserUpdate) (*entities.User, error) {
	return nil, errStoreNotConfigured()
}

type unavailableCredentials struct{}

func (unavailableCredentials) Create(context.Context, *entities.Credential) error {
	return errStoreNotConfigured()
}

func (unavailableCredentials) Delete(context.Context, string) error {
	return errStoreNotConfigured()
}

func (unavailableCredentials) GetByEmail(context.Context, string) (*entities.Credential, error) {
	return nil, errStoreNotConfigured()
}

type unavailableSessions struct{}

func (unavailableSessions) Create(context.Context, *entities.Session) error {
	return errStoreNotConfigured()
}

func (unavailableSessions) GetByID(context.Context, string) (*entities.Session, error) {
	return nil, errStoreNotConfigured()
}

func (unavailableSessions) Delete(context.Context, string) (bool, error) {
	return false, errStoreNotConfigured()
}

func (unavailableSessions) DeleteExpired(context.Context, time.Time) ([]*entities.Session, error) {
	return nil, errStoreNotConfigured()
}
