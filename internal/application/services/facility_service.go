package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// FacilityFilter narrows facility lookups. Location is matched against the
// facility's city as a case-insensitive substring; an empty Type matches all.
type FacilityFilter struct {
	Location string                `json:"location"`
	Type     entities.FacilityType `json:"type,omitempty"`
}

// Blank reports whether there is no search target
func (f FacilityFilter) Blank() bool {
	return strings.TrimSpace(f.Location) == ""
}

func (f FacilityFilter) query() repositories.FacilityQuery {
	return repositories.FacilityQuery{City: strings.TrimSpace(f.Location), Type: f.Type}
}

// LookupParams is a single stateless facility lookup
type LookupParams struct {
	FacilityFilter
	Page     int
	PageSize int
}

// FacilityPage is one page of facilities with its pagination metadata
type FacilityPage struct {
	Items []*entities.Facility `json:"items"`
	entities.Pagination
}

// FacilityService handles read-side business logic for facilities
type FacilityService struct {
	repo            repositories.FacilityRepository
	defaultPageSize int
	maxPageSize     int
}

// NewFacilityService creates a new facility service
func NewFacilityService(repo repositories.FacilityRepository, defaultPageSize, maxPageSize int) *FacilityService {
	if defaultPageSize <= 0 {
		defaultPageSize = 6
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &FacilityService{
		repo:            repo,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// DefaultPageSize returns the page size used when none is requested
func (s *FacilityService) DefaultPageSize() int {
	return s.defaultPageSize
}

// ValidatePageSize rejects page sizes outside [1, max]
func (s *FacilityService) ValidatePageSize(size int) error {
	if size <= 0 || size > s.maxPageSize {
		return apperrors.NewValidationError(fmt.Sprintf("page size must be between 1 and %d", s.maxPageSize))
	}
	return nil
}

// GetByID retrieves a facility by ID
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	return s.repo.GetByID(ctx, id)
}

// Count returns the number of facilities matching the filter
func (s *FacilityService) Count(ctx context.Context, filter FacilityFilter) (int, error) {
	return s.repo.Count(ctx, filter.query())
}

// Page returns the facilities in window [(page-1)*size, page*size). Pages
// below 1 start at the first row.
func (s *FacilityService) Page(ctx context.Context, filter FacilityFilter, page, size int) ([]*entities.Facility, error) {
	q := filter.query()
	q.Limit = size
	q.Offset = entities.Pagination{Page: page, PageSize: size}.Offset()
	items, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*entities.Facility{}
	}
	return items, nil
}

// InvalidateCount drops any cached count for the filter
func (s *FacilityService) InvalidateCount(ctx context.Context, filter FacilityFilter) error {
	invalidator, ok := s.repo.(repositories.FacilityCountInvalidator)
	if !ok {
		return nil
	}
	return invalidator.InvalidateCount(ctx, filter.query())
}

// Lookup runs the count and page queries for one request. A blank location
// yields an empty page without querying the store. Pages past the last one
// are rejected.
func (s *FacilityService) Lookup(ctx context.Context, params LookupParams) (*FacilityPage, error) {
	if params.PageSize == 0 {
		params.PageSize = s.defaultPageSize
	}
	if err := s.ValidatePageSize(params.PageSize); err != nil {
		return nil, err
	}
	if params.Page == 0 {
		params.Page = 1
	}
	if params.Page < 1 {
		return nil, apperrors.NewValidationError("page must be positive")
	}

	if params.Blank() {
		return &FacilityPage{
			Items:      []*entities.Facility{},
			Pagination: entities.NewPagination(1, params.PageSize, 0),
		}, nil
	}

	total, err := s.Count(ctx, params.FacilityFilter)
	if err != nil {
		return nil, err
	}

	pagination := entities.NewPagination(params.Page, params.PageSize, total)
	if params.Page > pagination.TotalPages {
		return nil, apperrors.NewValidationError(fmt.Sprintf("page %d is out of range (1-%d)", params.Page, pagination.TotalPages))
	}

	items, err := s.Page(ctx, params.FacilityFilter, params.Page, params.PageSize)
	if err != nil {
		return nil, err
	}

	return &FacilityPage{Items: items, Pagination: pagination}, nil
}

// Summary returns facility counts per type for a location. A blank
// location yields zero counts without querying the store.
func (s *FacilityService) Summary(ctx context.Context, location string) (*entities.FacilitySummary, error) {
	location = strings.TrimSpace(location)
	summary := &entities.FacilitySummary{
		Location: location,
		ByType:   make(map[entities.FacilityType]int, len(entities.FacilityTypes())),
	}
	for _, t := range entities.FacilityTypes() {
		summary.ByType[t] = 0
	}
	if location == "" {
		return summary, nil
	}

	counts, err := s.repo.CountByType(ctx, location)
	if err != nil {
		return nil, err
	}
	for t, n := range counts {
		if !t.Valid() {
			continue
		}
		summary.ByType[t] = n
		summary.Total += n
	}
	return summary, nil
}
