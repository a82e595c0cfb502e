package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ecogen/ecogen/backend/internal/adapters/cache"
	"github.com/ecogen/ecogen/backend/internal/api/handlers"
	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/api/routes"
	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

type MockFacilityService struct {
	mock.Mock
}

func (m *MockFacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Lookup(ctx context.Context, params services.LookupParams) (*services.FacilityPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FacilityPage), args.Error(1)
}

func (m *MockFacilityService) Summary(ctx context.Context, location string) (*entities.FacilitySummary, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FacilitySummary), args.Error(1)
}

type MockWorkspaceResolver struct {
	mock.Mock
}

func (m *MockWorkspaceResolver) Resolve(ctx context.Context, token string) (*services.Workspace, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Workspace), args.Error(1)
}

func newHandler(t *testing.T, facilities *MockFacilityService, resolver *MockWorkspaceResolver, storeErr error) http.Handler {
	t.Helper()
	return newInstrumentedHandler(t, facilities, resolver, storeErr, nil)
}

func newInstrumentedHandler(t *testing.T, facilities *MockFacilityService, resolver *MockWorkspaceResolver, storeErr error, metrics *observability.Metrics) http.Handler {
	t.Helper()
	store, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	router := routes.NewRouter(routes.Options{
		AuthHandler:      handlers.NewAuthHandler(nil, zerolog.Nop()),
		DashboardHandler: handlers.NewDashboardHandler(),
		FacilityHandler:  handlers.NewFacilityHandler(facilities),
		Sessions:         resolver,
		CacheMiddleware:  middleware.NewCacheMiddleware(store, nil, zerolog.Nop()),
		AllowedOrigins:   []string{"https://app.ecogen.test"},
		StoreErr:         storeErr,
		Metrics:          metrics,
		Logger:           zerolog.Nop(),
	})
	return router.SetupRoutes()
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	handler := newHandler(t, new(MockFacilityService), new(MockWorkspaceResolver), nil)
	w := serve(handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	degraded := newHandler(t, new(MockFacilityService), new(MockWorkspaceResolver), errors.New("DATABASE_URL is required"))
	w = serve(degraded, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","store":"unavailable"}`, w.Body.String())
}

func TestRouter_PublicFacilities(t *testing.T) {
	facilities := new(MockFacilityService)
	facilities.On("Lookup", mock.Anything, mock.MatchedBy(func(p services.LookupParams) bool {
		return p.Location == "Lagos"
	})).Return(&services.FacilityPage{
		Items:      []*entities.Facility{{ID: "fac-01", Name: "Lagos Recycling", Type: entities.FacilityTypeRecycling, City: "Lagos"}},
		Pagination: entities.NewPagination(1, 6, 1),
	}, nil).Once()
	facilities.On("GetByID", mock.Anything, "fac-01").
		Return(&entities.Facility{ID: "fac-01", Name: "Lagos Recycling"}, nil)

	handler := newHandler(t, facilities, new(MockWorkspaceResolver), nil)

	w := serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities?location=Lagos", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities?location=Lagos", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities/fac-01", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lagos Recycling")

	w = serve(handler, httptest.NewRequest(http.MethodPost, "/api/facilities", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	facilities.AssertExpectations(t)
}

func TestRouter_SessionRoutes(t *testing.T) {
	resolver := new(MockWorkspaceResolver)
	resolver.On("Resolve", mock.Anything, "stale").Return(nil, apperrors.NewAuthError("invalid session token", nil))
	resolver.On("Resolve", mock.Anything, "down").Return(nil, apperrors.NewStoreError("failed to load session", errors.New("dial tcp")))
	handler := newHandler(t, new(MockFacilityService), resolver, nil)

	w := serve(handler, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/dashboard/facilities/next", nil)
	req.Header.Set("Authorization", "Bearer stale")
	w = serve(handler, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer down")
	w = serve(handler, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(handler, httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "stream is only routed with an SSE handler")
}

func TestRouter_CORS(t *testing.T) {
	handler := newHandler(t, new(MockFacilityService), new(MockWorkspaceResolver), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard/facilities/search", nil)
	req.Header.Set("Origin", "https://app.ecogen.test")
	w := serve(handler, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.ecogen.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Origin", "https://app.ecogen.test")
	w = serve(handler, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "https://app.ecogen.test", w.Header().Get("Access-Control-Allow-Origin"))
}

// requestRoutes collects the http.route attribute of every request count point
func requestRoutes(t *testing.T, reader sdkmetric.Reader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	routes := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "http.server.request.count" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				route, _ := point.Attributes.Value("http.route")
				routes[route.AsString()] += point.Value
			}
		}
	}
	return routes
}

func TestRouter_MetricsKeyedByRoutePattern(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	metrics, err := observability.InitMetrics()
	require.NoError(t, err)

	facilities := new(MockFacilityService)
	facilities.On("Lookup", mock.Anything, mock.Anything).Return(&services.FacilityPage{
		Items:      []*entities.Facility{},
		Pagination: entities.NewPagination(1, 6, 0),
	}, nil).Once()
	facilities.On("GetByID", mock.Anything, "fac-01").
		Return(&entities.Facility{ID: "fac-01", Name: "Lagos Recycling"}, nil)
	handler := newInstrumentedHandler(t, facilities, new(MockWorkspaceResolver), nil, metrics)

	serve(handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities/fac-01", nil))
	miss := serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities?location=Lagos", nil))
	hit := serve(handler, httptest.NewRequest(http.MethodGet, "/api/facilities?location=Lagos", nil))
	serve(handler, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	serve(handler, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, "MISS", miss.Header().Get("X-Cache"))
	require.Equal(t, "HIT", hit.Header().Get("X-Cache"))

	routes := requestRoutes(t, reader)
	assert.Equal(t, int64(1), routes["GET /health"])
	assert.Equal(t, int64(1), routes["GET /api/facilities/{id}"])
	assert.Equal(t, int64(2), routes["GET /api/facilities"], "cache hits keep the route")
	assert.Equal(t, int64(1), routes["GET /api/dashboard"], "rejected sessions keep the route")
	assert.Equal(t, int64(1), routes["unmatched"])
}
