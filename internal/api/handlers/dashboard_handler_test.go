package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecogen/ecogen/backend/internal/api/handlers"
	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

func withWorkspace(req *http.Request, ws *services.Workspace) *http.Request {
	return req.WithContext(middleware.WithWorkspace(req.Context(), ws))
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) services.FacilityResult {
	t.Helper()
	var result services.FacilityResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	return result
}

func TestDashboardHandler_RequiresWorkspace(t *testing.T) {
	handler := handlers.NewDashboardHandler()

	w := httptest.NewRecorder()
	handler.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardHandler_GetDashboard(t *testing.T) {
	stack := newTestStack(13)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	w := httptest.NewRecorder()
	handler.GetDashboard(w, withWorkspace(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), ws))

	require.Equal(t, http.StatusOK, w.Code)
	var view services.Dashboard
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "user-ada", view.Identity.ID)
	assert.Equal(t, 13, view.Facilities.Pagination.TotalCount)
	require.NotNil(t, view.Summary)
	assert.Equal(t, 13, view.Summary.ByType[entities.FacilityTypeRecycling])
	assert.Len(t, view.WasteCategories, 3)
}

func TestDashboardHandler_Pagination(t *testing.T) {
	stack := newTestStack(13)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	w := httptest.NewRecorder()
	handler.SetPage(w, withWorkspace(postJSON("/api/dashboard/facilities/page", `{"page":2}`), ws))
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeResult(t, w)
	assert.Equal(t, 2, result.Pagination.Page)
	assert.Equal(t, "Facility 07", result.Items[0].Name)

	w = httptest.NewRecorder()
	handler.NextPage(w, withWorkspace(postJSON("/api/dashboard/facilities/next", ""), ws))
	result = decodeResult(t, w)
	assert.Equal(t, 3, result.Pagination.Page)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Facility 13", result.Items[0].Name)

	w = httptest.NewRecorder()
	handler.NextPage(w, withWorkspace(postJSON("/api/dashboard/facilities/next", ""), ws))
	assert.Equal(t, 3, decodeResult(t, w).Pagination.Page)

	w = httptest.NewRecorder()
	handler.PrevPage(w, withWorkspace(postJSON("/api/dashboard/facilities/prev", ""), ws))
	assert.Equal(t, 2, decodeResult(t, w).Pagination.Page)

	w = httptest.NewRecorder()
	handler.SetPage(w, withWorkspace(postJSON("/api/dashboard/facilities/page", `{"page":9}`), ws))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "page 9 is out of range (1-3)", decodeError(t, w).Error)

	w = httptest.NewRecorder()
	handler.SetPage(w, withWorkspace(postJSON("/api/dashboard/facilities/page", `{"page":0}`), ws))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, ws.Facilities.State().Page)
}

func TestDashboardHandler_FiltersResetPage(t *testing.T) {
	stack := newTestStack(13)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	_, err := ws.Facilities.SetPage(t.Context(), 3)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.SetPageSize(w, withWorkspace(postJSON("/api/dashboard/facilities/page-size", `{"page_size":5}`), ws))
	result := decodeResult(t, w)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Equal(t, 3, result.Pagination.TotalPages)

	w = httptest.NewRecorder()
	handler.Filter(w, withWorkspace(postJSON("/api/dashboard/facilities/filter", `{"type":"biogas"}`), ws))
	result = decodeResult(t, w)
	assert.Equal(t, services.QueryStatusEmpty, result.Status)
	assert.Equal(t, entities.FacilityTypeBiogas, result.Query.Type)

	w = httptest.NewRecorder()
	handler.Filter(w, withWorkspace(postJSON("/api/dashboard/facilities/filter", `{"type":"all"}`), ws))
	result = decodeResult(t, w)
	assert.Equal(t, 13, result.Pagination.TotalCount)

	w = httptest.NewRecorder()
	handler.Filter(w, withWorkspace(postJSON("/api/dashboard/facilities/filter", `{"type":"landfill"}`), ws))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler.Search(w, withWorkspace(postJSON("/api/dashboard/facilities/search", `{"search_term":"   "}`), ws))
	result = decodeResult(t, w)
	assert.Equal(t, services.QueryStatusEmpty, result.Status)
	assert.Empty(t, result.Items)
}

func TestDashboardHandler_StoreFailureIsErrorState(t *testing.T) {
	stack := newTestStack(13)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	stack.facilities.err = apperrors.NewStoreError("failed to count facilities", errors.New("timeout"))

	w := httptest.NewRecorder()
	handler.Refresh(w, withWorkspace(postJSON("/api/dashboard/facilities/refresh", ""), ws))

	require.Equal(t, http.StatusOK, w.Code)
	result := decodeResult(t, w)
	assert.Equal(t, services.QueryStatusError, result.Status)
	assert.Equal(t, "failed to count facilities", result.Error)

	w = httptest.NewRecorder()
	handler.Notifications(w, withWorkspace(httptest.NewRequest(http.MethodGet, "/api/dashboard/notifications", nil), ws))
	var resp struct {
		Notifications []providers.Notice `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Failed to load facilities", resp.Notifications[0].Title)

	w = httptest.NewRecorder()
	handler.Notifications(w, withWorkspace(httptest.NewRequest(http.MethodGet, "/api/dashboard/notifications", nil), ws))
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}

func TestDashboardHandler_UpdateLocation(t *testing.T) {
	stack := newTestStack(13)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	w := httptest.NewRecorder()
	handler.UpdateLocation(w, withWorkspace(httptest.NewRequest(http.MethodPut, "/api/me/location", strings.NewReader(`{"location":"Lagos"}`)), ws))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		User       entities.User           `json:"user"`
		Facilities services.FacilityResult `json:"facilities"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Lagos", resp.User.Location)
	assert.Equal(t, "Lagos", resp.Facilities.Query.SearchTerm)
	assert.Equal(t, services.QueryStatusEmpty, resp.Facilities.Status)

	w = httptest.NewRecorder()
	handler.GetMe(w, withWorkspace(httptest.NewRequest(http.MethodGet, "/api/me", nil), ws))
	var me entities.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&me))
	assert.Equal(t, "Lagos", me.Location)

	w = httptest.NewRecorder()
	handler.UpdateLocation(w, withWorkspace(httptest.NewRequest(http.MethodPut, "/api/me/location", strings.NewReader(`{"location":"NY"}`)), ws))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Location must be at least 3 characters", decodeError(t, w).Error)
}

func TestDashboardHandler_UpdateLocationAfterSignOut(t *testing.T) {
	stack := newTestStack(3)
	_, ws := stack.signIn(t)
	handler := handlers.NewDashboardHandler()

	require.NoError(t, ws.Session.SignOut(t.Context()))

	w := httptest.NewRecorder()
	handler.UpdateLocation(w, withWorkspace(httptest.NewRequest(http.MethodPut, "/api/me/location", strings.NewReader(`{"location":"Lagos"}`)), ws))

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, string(apperrors.ErrorTypePrecondition), decodeError(t, w).Type)
}
