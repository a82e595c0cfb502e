package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// QueryStatus is the lifecycle state of the engine's current result
type QueryStatus string

const (
	QueryStatusIdle    QueryStatus = "idle"
	QueryStatusLoading QueryStatus = "loading"
	QueryStatusReady   QueryStatus = "ready"
	QueryStatusEmpty   QueryStatus = "empty"
	QueryStatusError   QueryStatus = "error"
)

// QueryState drives a facility query
type QueryState struct {
	SearchTerm string                `json:"search_term"`
	Type       entities.FacilityType `json:"type"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

func (s QueryState) filter() FacilityFilter {
	return FacilityFilter{Location: s.SearchTerm, Type: s.Type}
}

// FacilityResult is the engine's view of the current query. Error is only
// set when Status is QueryStatusError.
type FacilityResult struct {
	Items      []*entities.Facility `json:"items"`
	Pagination entities.Pagination  `json:"pagination"`
	Query      QueryState           `json:"query"`
	Status     QueryStatus          `json:"status"`
	Error      string               `json:"error,omitempty"`
	Generation uint64               `json:"generation"`
}

func (r FacilityResult) clone() FacilityResult {
	out := r
	out.Items = append([]*entities.Facility(nil), r.Items...)
	if out.Items == nil {
		out.Items = []*entities.Facility{}
	}
	return out
}

// fetchRequest captures the state a fetch was issued for
type fetchRequest struct {
	generation uint64
	state      QueryState
	withCount  bool
	total      int
}

// FacilityQueryEngine owns one client's facility query state. Filter, search
// and page-size changes reset to page 1 and re-issue both the count and the
// page query; page navigation re-issues only the page query while the count
// for the current filter is known. Every fetch carries a generation and only
// the latest generation may update the result.
type FacilityQueryEngine struct {
	facilities *FacilityService
	notifier   providers.Notifier
	logger     zerolog.Logger
	metrics    *observability.Metrics

	mu         sync.Mutex
	state      QueryState
	result     FacilityResult
	generation uint64
	total      int
	countKnown bool
}

// NewFacilityQueryEngine creates an idle engine using the service's default page size
func NewFacilityQueryEngine(facilities *FacilityService, notifier providers.Notifier, logger zerolog.Logger, metrics *observability.Metrics) *FacilityQueryEngine {
	state := QueryState{Page: 1, PageSize: facilities.DefaultPageSize()}
	return &FacilityQueryEngine{
		facilities: facilities,
		notifier:   notifier,
		logger:     logger.With().Str("component", "facility_query_engine").Logger(),
		metrics:    metrics,
		state:      state,
		result: FacilityResult{
			Items:      []*entities.Facility{},
			Pagination: entities.NewPagination(1, state.PageSize, 0),
			Query:      state,
			Status:     QueryStatusIdle,
		},
	}
}

// Snapshot returns a copy of the current result
func (e *FacilityQueryEngine) Snapshot() FacilityResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result.clone()
}

// State returns the current query state
func (e *FacilityQueryEngine) State() QueryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetSearchTerm changes the city substring and fetches page 1
func (e *FacilityQueryEngine) SetSearchTerm(ctx context.Context, term string) (FacilityResult, error) {
	e.mu.Lock()
	e.state.SearchTerm = strings.TrimSpace(term)
	req := e.resetLocked()
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// SetFacilityType changes the type filter and fetches page 1. The empty
// type selects every facility type.
func (e *FacilityQueryEngine) SetFacilityType(ctx context.Context, facilityType entities.FacilityType) (FacilityResult, error) {
	if facilityType != "" && !facilityType.Valid() {
		return e.Snapshot(), apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", facilityType))
	}
	e.mu.Lock()
	e.state.Type = facilityType
	req := e.resetLocked()
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// SetFilters changes the search term and type together with a single fetch
func (e *FacilityQueryEngine) SetFilters(ctx context.Context, term string, facilityType entities.FacilityType) (FacilityResult, error) {
	if facilityType != "" && !facilityType.Valid() {
		return e.Snapshot(), apperrors.NewValidationError(fmt.Sprintf("unknown facility type %q", facilityType))
	}
	e.mu.Lock()
	e.state.SearchTerm = strings.TrimSpace(term)
	e.state.Type = facilityType
	req := e.resetLocked()
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// SetPageSize changes the page size and fetches page 1
func (e *FacilityQueryEngine) SetPageSize(ctx context.Context, size int) (FacilityResult, error) {
	if err := e.facilities.ValidatePageSize(size); err != nil {
		return e.Snapshot(), err
	}
	e.mu.Lock()
	e.state.PageSize = size
	req := e.resetLocked()
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// SetPage moves to page n. Pages outside [1, totalPages] are rejected
// without any state change.
func (e *FacilityQueryEngine) SetPage(ctx context.Context, n int) (FacilityResult, error) {
	e.mu.Lock()
	totalPages := e.totalPagesLocked()
	if n < 1 || n > totalPages {
		snapshot := e.result.clone()
		e.mu.Unlock()
		return snapshot, apperrors.NewValidationError(fmt.Sprintf("page %d is out of range (1-%d)", n, totalPages))
	}
	e.state.Page = n
	req := e.beginLocked(!e.countKnown)
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// NextPage advances one page. It is a no-op on the last page.
func (e *FacilityQueryEngine) NextPage(ctx context.Context) (FacilityResult, error) {
	e.mu.Lock()
	if e.state.Page >= e.totalPagesLocked() {
		snapshot := e.result.clone()
		e.mu.Unlock()
		return snapshot, nil
	}
	e.state.Page++
	req := e.beginLocked(!e.countKnown)
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// PrevPage goes back one page. It is a no-op on page 1.
func (e *FacilityQueryEngine) PrevPage(ctx context.Context) (FacilityResult, error) {
	e.mu.Lock()
	if e.state.Page <= 1 {
		snapshot := e.result.clone()
		e.mu.Unlock()
		return snapshot, nil
	}
	e.state.Page--
	req := e.beginLocked(!e.countKnown)
	e.mu.Unlock()
	return e.run(ctx, req), nil
}

// Refresh re-issues the count and the current page without resetting
// pagination. If the total shrank below the current page the page is
// clamped to the new last page.
func (e *FacilityQueryEngine) Refresh(ctx context.Context) (FacilityResult, error) {
	e.mu.Lock()
	filter := e.state.filter()
	req := e.beginLocked(true)
	e.mu.Unlock()

	if !filter.Blank() {
		if err := e.facilities.InvalidateCount(ctx, filter); err != nil {
			e.logger.Warn().Err(err).Msg("failed to invalidate cached count")
		}
	}
	return e.run(ctx, req), nil
}

func (e *FacilityQueryEngine) totalPagesLocked() int {
	if !e.countKnown {
		return 1
	}
	return entities.TotalPages(e.total, e.state.PageSize)
}

// resetLocked moves to page 1 and begins a full fetch. Caller holds e.mu.
func (e *FacilityQueryEngine) resetLocked() fetchRequest {
	e.state.Page = 1
	e.countKnown = false
	return e.beginLocked(true)
}

// beginLocked issues a new generation and marks the result as loading.
// Caller holds e.mu.
func (e *FacilityQueryEngine) beginLocked(withCount bool) fetchRequest {
	e.generation++
	req := fetchRequest{
		generation: e.generation,
		state:      e.state,
		withCount:  withCount || !e.countKnown,
		total:      e.total,
	}
	e.result.Query = e.state
	e.result.Status = QueryStatusLoading
	e.result.Error = ""
	e.result.Generation = req.generation
	return req
}

func (e *FacilityQueryEngine) run(ctx context.Context, req fetchRequest) FacilityResult {
	filter := req.state.filter()
	if filter.Blank() {
		return e.complete(ctx, req, req.state, 0, []*entities.Facility{})
	}

	ctx, span := observability.StartSpan(ctx, "FacilityQueryEngine.fetch")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("facility.search_term", filter.Location),
		attribute.String("facility.type", string(filter.Type)),
		attribute.Int("facility.page", req.state.Page),
		attribute.Int("facility.page_size", req.state.PageSize),
		attribute.Int64("facility.generation", int64(req.generation)),
	)

	state := req.state
	total := req.total
	if req.withCount {
		start := time.Now()
		count, err := e.facilities.Count(ctx, filter)
		observability.RecordFacilityQuery(ctx, e.metrics, "count", time.Since(start))
		if err != nil {
			observability.RecordError(span, err)
			return e.fail(ctx, req, err, false)
		}
		total = count
		if totalPages := entities.TotalPages(total, state.PageSize); state.Page > totalPages {
			state.Page = totalPages
		}
	}

	start := time.Now()
	items, err := e.facilities.Page(ctx, filter, state.Page, state.PageSize)
	observability.RecordFacilityQuery(ctx, e.metrics, "page", time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		req.state = state
		req.total = total
		return e.fail(ctx, req, err, true)
	}

	return e.complete(ctx, req, state, total, items)
}

func (e *FacilityQueryEngine) complete(ctx context.Context, req fetchRequest, state QueryState, total int, items []*entities.Facility) FacilityResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.generation != e.generation {
		observability.RecordStaleResult(ctx, e.metrics)
		e.logger.Debug().Uint64("generation", req.generation).Uint64("latest", e.generation).Msg("discarding stale facility result")
		return e.result.clone()
	}

	e.state.Page = state.Page
	e.total = total
	e.countKnown = true

	status := QueryStatusReady
	if len(items) == 0 {
		status = QueryStatusEmpty
	}
	e.result = FacilityResult{
		Items:      items,
		Pagination: entities.NewPagination(state.Page, state.PageSize, total),
		Query:      e.state,
		Status:     status,
		Generation: req.generation,
	}
	return e.result.clone()
}

// fail records a store failure as the error state and raises a notice.
// countOK reports whether req.total holds a count for req.state's filter.
func (e *FacilityQueryEngine) fail(ctx context.Context, req fetchRequest, err error, countOK bool) FacilityResult {
	e.mu.Lock()
	if req.generation != e.generation {
		observability.RecordStaleResult(ctx, e.metrics)
		snapshot := e.result.clone()
		e.mu.Unlock()
		return snapshot
	}

	total := 0
	if countOK {
		e.state.Page = req.state.Page
		e.total = req.total
		e.countKnown = true
		total = req.total
	} else {
		e.countKnown = false
	}

	message := apperrors.MessageOf(err)
	e.result = FacilityResult{
		Items:      []*entities.Facility{},
		Pagination: entities.NewPagination(e.state.Page, e.state.PageSize, total),
		Query:      e.state,
		Status:     QueryStatusError,
		Error:      message,
		Generation: req.generation,
	}
	snapshot := e.result.clone()
	e.mu.Unlock()

	e.logger.Warn().Err(err).Uint64("generation", req.generation).Msg("facility fetch failed")
	if e.notifier != nil {
		e.notifier.Notify(ctx, providers.Notice{
			Level:       providers.NoticeError,
			Title:       "Failed to load facilities",
			Description: message,
		})
	}
	return snapshot
}
