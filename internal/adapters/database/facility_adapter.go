package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const locationsTable = "locations"

var facilityColumns = []interface{}{"id", "name", "type", "city", "address", "contact", "created_at"}

// FacilityAdapter implements the FacilityRepository interface over the
// locations table
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.From(locationsTable).
		Prepared(true).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get facility", err)
	}
	return facility, nil
}

// Count returns the number of facilities matching the query filters
func (a *FacilityAdapter) Count(ctx context.Context, q repositories.FacilityQuery) (int, error) {
	query, args, err := a.filtered(q).
		Select(goqu.COUNT("*")).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperrors.NewStoreError("failed to count facilities", err)
	}
	return total, nil
}

// List returns the requested window of matching facilities ordered by name.
// The id column breaks ties so page windows stay stable.
func (a *FacilityAdapter) List(ctx context.Context, q repositories.FacilityQuery) ([]*entities.Facility, error) {
	ds := a.filtered(q).
		Select(facilityColumns...).
		Order(goqu.I("name").Asc(), goqu.I("id").Asc())

	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	if q.Offset > 0 {
		ds = ds.Offset(uint(q.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facility list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list facilities", err)
	}
	defer rows.Close()

	facilities := []*entities.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("error iterating facilities", err)
	}

	return facilities, nil
}

// CountByType returns facility counts grouped by type for a city substring
func (a *FacilityAdapter) CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error) {
	query, args, err := a.filtered(repositories.FacilityQuery{City: city}).
		Select(goqu.I("type"), goqu.COUNT("*").As("count")).
		GroupBy(goqu.I("type")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build summary query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to summarise facilities", err)
	}
	defer rows.Close()

	counts := make(map[entities.FacilityType]int, len(entities.FacilityTypes()))
	for _, t := range entities.FacilityTypes() {
		counts[t] = 0
	}
	for rows.Next() {
		var (
			facilityType string
			count        int
		)
		if err := rows.Scan(&facilityType, &count); err != nil {
			return nil, apperrors.NewStoreError("failed to scan facility summary", err)
		}
		counts[entities.FacilityType(facilityType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("error iterating facility summary", err)
	}
	return counts, nil
}

// filtered builds the shared WHERE clause so count and page queries always
// apply identical filters
func (a *FacilityAdapter) filtered(q repositories.FacilityQuery) *goqu.SelectDataset {
	ds := a.db.From(locationsTable).Prepared(true)

	var conditions []exp.Expression
	if city := strings.TrimSpace(q.City); city != "" {
		conditions = append(conditions, goqu.I("city").ILike("%"+escapeLike(city)+"%"))
	}
	if q.Type != "" {
		conditions = append(conditions, goqu.I("type").Eq(string(q.Type)))
	}
	if len(conditions) > 0 {
		ds = ds.Where(conditions...)
	}
	return ds
}

// escapeLike escapes LIKE wildcards so user input only matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	facility := &entities.Facility{}
	var (
		facilityType string
		contact      sql.NullString
	)
	err := row.Scan(
		&facility.ID,
		&facility.Name,
		&facilityType,
		&facility.City,
		&facility.Address,
		&contact,
		&facility.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	facility.Type = entities.FacilityType(facilityType)
	if contact.Valid {
		facility.Contact = &contact.String
	}
	return facility, nil
}
