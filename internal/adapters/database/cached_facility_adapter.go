package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
)

// CachedFacilityAdapter wraps a FacilityRepository with caching of single
// facilities and per-filter counts. Page windows are always read through.
type CachedFacilityAdapter struct {
	adapter repositories.FacilityRepository
	cache   providers.CacheProvider
}

var (
	_ repositories.FacilityRepository       = (*CachedFacilityAdapter)(nil)
	_ repositories.FacilityCountInvalidator = (*CachedFacilityAdapter)(nil)
)

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider) *CachedFacilityAdapter {
	return &CachedFacilityAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	facilityByIDTTL  = 300 // 5 minutes for single facility
	facilityCountTTL = 120 // 2 minutes for counts
)

// Cache key generators
func facilityCacheKey(id string) string {
	return fmt.Sprintf("facility:%s", id)
}

func facilityCountCacheKey(q repositories.FacilityQuery) string {
	return fmt.Sprintf("facilities:count:%s:%s", q.Type, normalizeCity(q.City))
}

func facilitySummaryCacheKey(city string) string {
	return fmt.Sprintf("facilities:summary:%s", normalizeCity(city))
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	cacheKey := facilityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facility entities.Facility
		if err := json.Unmarshal(cached, &facility); err == nil {
			return &facility, nil
		}
		log.Warn().Str("facility_id", id).Msg("failed to unmarshal cached facility")
	}

	facility, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.setAsync(cacheKey, facility, facilityByIDTTL)
	return facility, nil
}

// Count returns the cached count for the filter combination, falling back
// to the wrapped repository
func (a *CachedFacilityAdapter) Count(ctx context.Context, q repositories.FacilityQuery) (int, error) {
	cacheKey := facilityCountCacheKey(q)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var total int
		if err := json.Unmarshal(cached, &total); err == nil {
			return total, nil
		}
	}

	total, err := a.adapter.Count(ctx, q)
	if err != nil {
		return 0, err
	}

	a.setAsync(cacheKey, total, facilityCountTTL)
	return total, nil
}

// List is not cached
func (a *CachedFacilityAdapter) List(ctx context.Context, q repositories.FacilityQuery) ([]*entities.Facility, error) {
	return a.adapter.List(ctx, q)
}

// CountByType retrieves per-type counts with caching
func (a *CachedFacilityAdapter) CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error) {
	cacheKey := facilitySummaryCacheKey(city)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var counts map[entities.FacilityType]int
		if err := json.Unmarshal(cached, &counts); err == nil {
			return counts, nil
		}
	}

	counts, err := a.adapter.CountByType(ctx, city)
	if err != nil {
		return nil, err
	}

	a.setAsync(cacheKey, counts, facilityCountTTL)
	return counts, nil
}

// InvalidateCount drops the cached count and summary for the filter
// combination so the next Count reaches the store
func (a *CachedFacilityAdapter) InvalidateCount(ctx context.Context, q repositories.FacilityQuery) error {
	if err := a.cache.Delete(ctx, facilityCountCacheKey(q)); err != nil {
		return err
	}
	return a.cache.Delete(ctx, facilitySummaryCacheKey(q.City))
}

// setAsync updates the cache without blocking the response
func (a *CachedFacilityAdapter) setAsync(key string, value interface{}, ttl int) {
	go func() {
		data, err := json.Marshal(value)
		if err != nil {
			return
		}
		if err := a.cache.Set(context.Background(), key, data, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache value")
		}
	}()
}
