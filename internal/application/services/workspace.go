package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const noticeBufferSize = 20

// NoticeBuffer keeps the most recent notices until they are drained
type NoticeBuffer struct {
	mu      sync.Mutex
	notices []providers.Notice
}

// Notify implements providers.Notifier
func (b *NoticeBuffer) Notify(ctx context.Context, notice providers.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, notice)
	if over := len(b.notices) - noticeBufferSize; over > 0 {
		b.notices = append([]providers.Notice(nil), b.notices[over:]...)
	}
}

// Drain returns and clears the buffered notices
func (b *NoticeBuffer) Drain() []providers.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	if out == nil {
		out = []providers.Notice{}
	}
	return out
}

// Dashboard is everything the dashboard view renders
type Dashboard struct {
	Identity        *entities.User            `json:"identity"`
	Facilities      FacilityResult            `json:"facilities"`
	Summary         *entities.FacilitySummary `json:"summary,omitempty"`
	WasteCategories []entities.WasteCategory  `json:"waste_categories"`
}

// Workspace is the server-side state of one signed-in client: its session
// manager, its facility query engine and its pending notices. The
// identity's location is fed into the engine as the search term whenever
// it changes.
type Workspace struct {
	Session    *SessionManager
	Facilities *FacilityQueryEngine

	service *FacilityService
	notices *NoticeBuffer
	logger  zerolog.Logger

	mu          sync.Mutex
	fedLocation string
	fedOnce     bool
}

// NewWorkspace creates a workspace and links its session manager to its engine
func NewWorkspace(
	auth providers.AuthProvider,
	users repositories.UserRepository,
	facilities *FacilityService,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Workspace {
	notices := &NoticeBuffer{}
	w := &Workspace{
		Session:    NewSessionManager(auth, users, notices, logger),
		Facilities: NewFacilityQueryEngine(facilities, notices, logger, metrics),
		service:    facilities,
		notices:    notices,
		logger:     logger,
	}
	w.Session.OnIdentityChange(w.feedLocation)
	return w
}

// feedLocation points the engine at the identity's location
func (w *Workspace) feedLocation(ctx context.Context, user *entities.User) {
	if user == nil {
		return
	}
	w.mu.Lock()
	if w.fedOnce && w.fedLocation == user.Location {
		w.mu.Unlock()
		return
	}
	w.fedOnce = true
	w.fedLocation = user.Location
	w.mu.Unlock()

	if _, err := w.Facilities.SetSearchTerm(ctx, user.Location); err != nil {
		w.logger.Warn().Err(err).Msg("failed to apply identity location")
	}
}

// Start restores token's session, if any, and begins watching session events
func (w *Workspace) Start(ctx context.Context, token string) error {
	return w.Session.Start(ctx, token)
}

// Close releases the workspace's subscriptions
func (w *Workspace) Close() {
	w.Session.Close()
}

// Notices drains pending notices
func (w *Workspace) Notices() []providers.Notice {
	return w.notices.Drain()
}

// Dashboard assembles the dashboard view. It requires an identity.
func (w *Workspace) Dashboard(ctx context.Context) (*Dashboard, error) {
	identity := w.Session.Identity()
	if identity == nil {
		return nil, apperrors.NewAuthError("no active session", nil)
	}

	view := &Dashboard{
		Identity:        identity,
		Facilities:      w.Facilities.Snapshot(),
		WasteCategories: entities.WasteCategories(),
	}

	summary, err := w.service.Summary(ctx, identity.Location)
	if err != nil {
		w.notices.Notify(ctx, providers.Notice{
			Level:       providers.NoticeError,
			Title:       "Failed to load facility summary",
			Description: apperrors.MessageOf(err),
		})
	} else {
		view.Summary = summary
	}
	return view, nil
}
