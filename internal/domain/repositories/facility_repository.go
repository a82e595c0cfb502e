package repositories

import (
	"context"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
)

// FacilityRepository defines the read operations on facility records
type FacilityRepository interface {
	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// Count returns the number of facilities matching the query filters.
	// Limit and Offset are ignored.
	Count(ctx context.Context, query FacilityQuery) (int, error)

	// List returns the requested window of matching facilities ordered by name
	List(ctx context.Context, query FacilityQuery) ([]*entities.Facility, error)

	// CountByType returns matching facility counts grouped by type
	CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error)
}

// FacilityCountInvalidator is implemented by repositories that cache counts
type FacilityCountInvalidator interface {
	InvalidateCount(ctx context.Context, query FacilityQuery) error
}

// FacilityQuery filters facilities. City is matched as a case-insensitive
// substring; an empty Type matches every type.
type FacilityQuery struct {
	City   string
	Type   entities.FacilityType
	Limit  int
	Offset int
}

// Filters returns the query without its page window
func (q FacilityQuery) Filters() FacilityQuery {
	return FacilityQuery{City: q.City, Type: q.Type}
}
