package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecogen/ecogen/backend/internal/adapters/cache"
	"github.com/ecogen/ecogen/backend/internal/adapters/database"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
)

// MockFacilityRepository is a mock implementation of FacilityRepository
type MockFacilityRepository struct {
	mock.Mock
}

func (m *MockFacilityRepository) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) Count(ctx context.Context, q repositories.FacilityQuery) (int, error) {
	args := m.Called(ctx, q)
	return args.Int(0), args.Error(1)
}

func (m *MockFacilityRepository) List(ctx context.Context, q repositories.FacilityQuery) ([]*entities.Facility, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error) {
	args := m.Called(ctx, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.FacilityType]int), args.Error(1)
}

func TestCachedFacilityAdapter_CountIsCachedPerFilter(t *testing.T) {
	ctx := context.Background()
	memory, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	repo := new(MockFacilityRepository)
	q := repositories.FacilityQuery{City: "Eco City", Type: entities.FacilityTypeRecycling, Limit: 6}
	repo.On("Count", ctx, q).Return(13, nil).Once()

	adapter := database.NewCachedFacilityAdapter(repo, memory)

	total, err := adapter.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 13, total)

	require.Eventually(t, func() bool {
		ok, _ := memory.Exists(ctx, "facilities:count:recycling:eco city")
		return ok
	}, time.Second, 10*time.Millisecond)

	total, err = adapter.Count(ctx, repositories.FacilityQuery{City: " eco city", Type: entities.FacilityTypeRecycling})
	require.NoError(t, err)
	assert.Equal(t, 13, total)

	repo.AssertNumberOfCalls(t, "Count", 1)
}

func TestCachedFacilityAdapter_InvalidateCount(t *testing.T) {
	ctx := context.Background()
	memory, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	repo := new(MockFacilityRepository)
	q := repositories.FacilityQuery{City: "eco city"}
	repo.On("Count", ctx, q).Return(13, nil).Once()
	repo.On("Count", ctx, q).Return(12, nil).Once()

	adapter := database.NewCachedFacilityAdapter(repo, memory)

	_, err = adapter.Count(ctx, q)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		ok, _ := memory.Exists(ctx, "facilities:count::eco city")
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, adapter.InvalidateCount(ctx, q))

	total, err := adapter.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	repo.AssertExpectations(t)
}

func TestCachedFacilityAdapter_ListReadsThrough(t *testing.T) {
	ctx := context.Background()
	memory, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	repo := new(MockFacilityRepository)
	q := repositories.FacilityQuery{City: "eco city", Limit: 6}
	page := []*entities.Facility{{ID: "loc-1", Name: "Green Cycle"}}
	repo.On("List", ctx, q).Return(page, nil).Twice()

	adapter := database.NewCachedFacilityAdapter(repo, memory)

	for i := 0; i < 2; i++ {
		got, err := adapter.List(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, page, got)
	}
	repo.AssertExpectations(t)
}
