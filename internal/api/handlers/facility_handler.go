package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// FacilityService is the read side the facility handler needs
type FacilityService interface {
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	Lookup(ctx context.Context, params services.LookupParams) (*services.FacilityPage, error)
	Summary(ctx context.Context, location string) (*entities.FacilitySummary, error)
}

// FacilityHandler handles the public facility endpoints
type FacilityHandler struct {
	service FacilityService
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(service FacilityService) *FacilityHandler {
	return &FacilityHandler{service: service}
}

// facilityListQuery is the query string of GET /api/facilities
type facilityListQuery struct {
	Location string `json:"location"`
	Type     string `json:"type" validate:"facility_type"`
	Page     int    `json:"page" validate:"min=0"`
	PageSize int    `json:"page_size" validate:"min=0"`
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := strings.TrimSpace(r.PathValue("id"))
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	facility, err := h.service.GetByID(r.Context(), facilityID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}

// ListFacilities handles GET /api/facilities?location=&type=&page=&page_size=
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	form := facilityListQuery{
		Location: query.Get("location"),
		Type:     query.Get("type"),
	}
	var err error
	if form.Page, err = queryInt(query.Get("page"), "page"); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if form.PageSize, err = queryInt(query.Get("page_size"), "page_size"); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := validateForm(form); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	facilityType, _ := entities.ParseFacilityType(form.Type)
	page, err := h.service.Lookup(r.Context(), services.LookupParams{
		FacilityFilter: services.FacilityFilter{Location: form.Location, Type: facilityType},
		Page:           form.Page,
		PageSize:       form.PageSize,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

// GetFacilitySummary handles GET /api/facilities/summary?location=
func (h *FacilityHandler) GetFacilitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// ListWasteCategories handles GET /api/waste-categories
func (h *FacilityHandler) ListWasteCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": entities.WasteCategories(),
	})
}

// queryInt parses an optional integer parameter; empty is 0
func queryInt(value, name string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.NewValidationError(name + " must be an integer")
	}
	return n, nil
}
