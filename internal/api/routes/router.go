package routes

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/api/handlers"
	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	authHandler      *handlers.AuthHandler
	dashboardHandler *handlers.DashboardHandler
	facilityHandler  *handlers.FacilityHandler
	sseHandler       *handlers.SSEHandler

	sessions        middleware.WorkspaceResolver
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	storeErr        error
	metrics         *observability.Metrics
	logger          zerolog.Logger
}

// Options configures the router
type Options struct {
	AuthHandler      *handlers.AuthHandler
	DashboardHandler *handlers.DashboardHandler
	FacilityHandler  *handlers.FacilityHandler
	SSEHandler       *handlers.SSEHandler

	Sessions        middleware.WorkspaceResolver
	CacheMiddleware *middleware.CacheMiddleware
	AllowedOrigins  []string
	// StoreErr is reported by /health when the data store is not configured
	StoreErr error
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// NewRouter creates a new router
func NewRouter(opts Options) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		authHandler:      opts.AuthHandler,
		dashboardHandler: opts.DashboardHandler,
		facilityHandler:  opts.FacilityHandler,
		sseHandler:       opts.SSEHandler,
		sessions:         opts.Sessions,
		cacheMiddleware:  opts.CacheMiddleware,
		allowedOrigins:   opts.AllowedOrigins,
		storeErr:         opts.StoreErr,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.health)

	// Auth endpoints
	r.mux.HandleFunc("POST /api/auth/sign-up", r.authHandler.SignUp)
	r.mux.HandleFunc("POST /api/auth/sign-in", r.authHandler.SignIn)
	r.mux.HandleFunc("POST /api/auth/sign-out", r.authHandler.SignOut)

	// Public facility endpoints
	r.mux.HandleFunc("GET /api/facilities", r.facilityHandler.ListFacilities)
	r.mux.HandleFunc("GET /api/facilities/summary", r.facilityHandler.GetFacilitySummary)
	r.mux.HandleFunc("GET /api/facilities/{id}", r.facilityHandler.GetFacility)
	r.mux.HandleFunc("GET /api/waste-categories", r.facilityHandler.ListWasteCategories)

	// Session endpoints
	authed := middleware.RequireSession(r.sessions)
	r.handleAuthed(authed, "GET /api/me", r.dashboardHandler.GetMe)
	r.handleAuthed(authed, "PUT /api/me/location", r.dashboardHandler.UpdateLocation)
	r.handleAuthed(authed, "GET /api/dashboard", r.dashboardHandler.GetDashboard)
	r.handleAuthed(authed, "GET /api/dashboard/notifications", r.dashboardHandler.Notifications)
	r.handleAuthed(authed, "GET /api/dashboard/facilities", r.dashboardHandler.GetFacilities)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/search", r.dashboardHandler.Search)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/filter", r.dashboardHandler.Filter)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/page", r.dashboardHandler.SetPage)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/page-size", r.dashboardHandler.SetPageSize)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/next", r.dashboardHandler.NextPage)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/prev", r.dashboardHandler.PrevPage)
	r.handleAuthed(authed, "POST /api/dashboard/facilities/refresh", r.dashboardHandler.Refresh)
	if r.sseHandler != nil {
		r.handleAuthed(authed, "GET /api/dashboard/stream", r.sseHandler.StreamSession)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so cached responses also get CORS headers.
	var handler http.Handler = middleware.RoutePattern(r.mux)
	handler = middleware.LoggingMiddleware(r.logger)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) handleAuthed(authed func(http.Handler) http.Handler, pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, authed(h))
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.storeErr != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","store":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
