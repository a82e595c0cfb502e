package handlers

import (
	"context"
	"net/http"

	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// DashboardHandler serves the signed-in dashboard. Every route runs behind
// middleware.RequireSession.
type DashboardHandler struct{}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// UpdateLocationRequest is the body of PUT /api/me/location
type UpdateLocationRequest struct {
	Location string `json:"location" validate:"required,trimmed_min=3"`
}

type searchRequest struct {
	SearchTerm string `json:"search_term"`
}

type filterRequest struct {
	Type string `json:"type" validate:"facility_type"`
}

type pageRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

type pageSizeRequest struct {
	PageSize int `json:"page_size" validate:"required,min=1"`
}

func workspaceOf(w http.ResponseWriter, r *http.Request) (*services.Workspace, bool) {
	ws, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		respondWithAppError(w, r, apperrors.NewAuthError("no active session", nil))
		return nil, false
	}
	return ws, true
}

// GetMe handles GET /api/me
func (h *DashboardHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	identity := ws.Session.Identity()
	if identity == nil {
		respondWithAppError(w, r, apperrors.NewAuthError("no active session", nil))
		return
	}
	respondWithJSON(w, http.StatusOK, identity)
}

// UpdateLocation handles PUT /api/me/location
func (h *DashboardHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := decodeForm(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := ws.Session.UpdateLocation(r.Context(), req.Location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"facilities": ws.Facilities.Snapshot(),
	})
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	view, err := ws.Dashboard(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// GetFacilities handles GET /api/dashboard/facilities
func (h *DashboardHandler) GetFacilities(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, ws.Facilities.Snapshot())
}

// Search handles POST /api/dashboard/facilities/search
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	h.withForm(w, r, &req, func(ctx context.Context, engine *services.FacilityQueryEngine) (services.FacilityResult, error) {
		return engine.SetSearchTerm(ctx, req.SearchTerm)
	})
}

// Filter handles POST /api/dashboard/facilities/filter
func (h *DashboardHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	h.withForm(w, r, &req, func(ctx context.Context, engine *services.FacilityQueryEngine) (services.FacilityResult, error) {
		facilityType, _ := entities.ParseFacilityType(req.Type)
		return engine.SetFacilityType(ctx, facilityType)
	})
}

// SetPage handles POST /api/dashboard/facilities/page
func (h *DashboardHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	h.withForm(w, r, &req, func(ctx context.Context, engine *services.FacilityQueryEngine) (services.FacilityResult, error) {
		return engine.SetPage(ctx, req.Page)
	})
}

// SetPageSize handles POST /api/dashboard/facilities/page-size
func (h *DashboardHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	var req pageSizeRequest
	h.withForm(w, r, &req, func(ctx context.Context, engine *services.FacilityQueryEngine) (services.FacilityResult, error) {
		return engine.SetPageSize(ctx, req.PageSize)
	})
}

// NextPage handles POST /api/dashboard/facilities/next
func (h *DashboardHandler) NextPage(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*services.FacilityQueryEngine).NextPage)
}

// PrevPage handles POST /api/dashboard/facilities/prev
func (h *DashboardHandler) PrevPage(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*services.FacilityQueryEngine).PrevPage)
}

// Refresh handles POST /api/dashboard/facilities/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*services.FacilityQueryEngine).Refresh)
}

// Notifications handles GET /api/dashboard/notifications. Notices are
// returned once.
func (h *DashboardHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": ws.Notices(),
	})
}

type engineAction func(engine *services.FacilityQueryEngine, ctx context.Context) (services.FacilityResult, error)

func (h *DashboardHandler) run(w http.ResponseWriter, r *http.Request, action engineAction) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	result, err := action(ws.Facilities, r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *DashboardHandler) withForm(w http.ResponseWriter, r *http.Request, form interface{}, apply func(ctx context.Context, engine *services.FacilityQueryEngine) (services.FacilityResult, error)) {
	ws, ok := workspaceOf(w, r)
	if !ok {
		return
	}
	if err := decodeForm(r, form); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	result, err := apply(r.Context(), ws.Facilities)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
