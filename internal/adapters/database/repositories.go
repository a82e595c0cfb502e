package database

import (
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
)

// Repositories groups the store-backed repositories
type Repositories struct {
	Facilities  repositories.FacilityRepository
	Users       repositories.UserRepository
	Credentials repositories.CredentialRepository
	Sessions    repositories.SessionRepository
}

// NewRepositories wires every repository to the given client. When cache is
// non-nil facility reads go through a CachedFacilityAdapter.
func NewRepositories(client *postgres.Client, cache providers.CacheProvider) Repositories {
	var facilities repositories.FacilityRepository = NewFacilityAdapter(client)
	if cache != nil {
		facilities = NewCachedFacilityAdapter(facilities, cache)
	}
	return Repositories{
		Facilities:  facilities,
		Users:       NewUserAdapter(client),
		Credentials: NewCredentialAdapter(client),
		Sessions:    NewSessionAdapter(client),
	}
}
