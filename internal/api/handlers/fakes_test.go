package handlers_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// MockFacilityService is a mock implementation of handlers.FacilityService
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

// MockSessionRegistry is a mock implementation of handlers.SessionRegistry
type MockSessionRegistry struct {
	mock.Mock
}

func (m *MockSessionRegistry) SignUp(ctx context.Context, email, password string, fields services.ProfileFields) (*entities.User, error) {
	args := m.Called(ctx, email, password, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockSessionRegistry) SignIn(ctx context.Context, email, password, location string) (string, *services.Workspace, error) {
	args := m.Called(ctx, email, password, location)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*services.Workspace), args.Error(2)
}

func (m *MockSessionRegistry) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// stubAuth accepts one password for every email and issues sequential sessions
type stubAuth struct {
	mu       sync.Mutex
	password string
	next     int
	sessions map[string]*entities.Session
	events   chan *entities.SessionEvent
}

func newStubAuth(password string) *stubAuth {
	return &stubAuth{
		password: password,
		sessions: map[string]*entities.Session{},
		events:   make(chan *entities.SessionEvent, 8),
	}
}

func (a *stubAuth) SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error) {
	if password != a.password {
		return nil, apperrors.NewAuthError("invalid email or password", nil)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	session := &entities.Session{
		ID:        fmt.Sprintf("sess-%d", a.next),
		UserID:    "user-" + strings.SplitN(email, "@", 2)[0],
		Email:     email,
		Token:     fmt.Sprintf("token-%d", a.next),
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	a.sessions[session.Token] = session
	return session, nil
}

func (a *stubAuth) SignUp(ctx context.Context, email, password string) (string, error) {
	return "user-" + strings.SplitN(email, "@", 2)[0], nil
}

func (a *stubAuth) RemoveAccount(ctx context.Context, userID string) error {
	return nil
}

func (a *stubAuth) SignOut(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
	return nil
}

func (a *stubAuth) GetSession(ctx context.Context, token string) (*entities.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.sessions[token]
	if !ok {
		return nil, apperrors.NewAuthError("invalid session token", nil)
	}
	return session, nil
}

func (a *stubAuth) Subscribe(ctx context.Context) (<-chan *entities.SessionEvent, error) {
	return a.events, nil
}

func (a *stubAuth) PublishProfileUpdated(ctx context.Context, userID string) error {
	return nil
}

// memoryUsers is an in-memory UserRepository
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*entities.User{}}
}

func (u *memoryUsers) Create(ctx context.Context, user *entities.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = user.Clone()
	return nil
}

func (u *memoryUsers) GetByID(ctx context.Context, id string) (*entities.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("profile not found")
	}
	return user.Clone(), nil
}

func (u *memoryUsers) Update(ctx context.Context, id string, update repositories.UserUpdate) (*entities.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("profile not found")
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	return user.Clone(), nil
}

// memoryFacilities is an in-memory FacilityRepository
type memoryFacilities struct {
	facilities []*entities.Facility
	err        error
}

func (f *memoryFacilities) match(q repositories.FacilityQuery) []*entities.Facility {
	var out []*entities.Facility
	for _, facility := range f.facilities {
		if !strings.Contains(strings.ToLower(facility.City), strings.ToLower(q.City)) {
			continue
		}
		if q.Type != "" && facility.Type != q.Type {
			continue
		}
		out = append(out, facility)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *memoryFacilities) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	for _, facility := range f.facilities {
		if facility.ID == id {
			return facility, nil
		}
	}
	return nil, apperrors.NewNotFoundError("facility not found")
}

func (f *memoryFacilities) Count(ctx context.Context, q repositories.FacilityQuery) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.match(q)), nil
}

func (f *memoryFacilities) List(ctx context.Context, q repositories.FacilityQuery) ([]*entities.Facility, error) {
	if f.err != nil {
		return nil, f.err
	}
	matches := f.match(q)
	if q.Offset >= len(matches) {
		return []*entities.Facility{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[q.Offset:end], nil
}

func (f *memoryFacilities) CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error) {
	counts := map[entities.FacilityType]int{}
	for _, facility := range f.match(repositories.FacilityQuery{City: city}) {
		counts[facility.Type]++
	}
	return counts, nil
}

func ecoCityFacilities(n int) []*entities.Facility {
	out := make([]*entities.Facility, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &entities.Facility{
			ID:      fmt.Sprintf("fac-%02d", i),
			Name:    fmt.Sprintf("Facility %02d", i),
			Type:    entities.FacilityTypeRecycling,
			City:    "Eco City",
			Address: fmt.Sprintf("%d Green Road", i),
		})
	}
	return out
}

type testStack struct {
	auth       *stubAuth
	users      *memoryUsers
	facilities *memoryFacilities
	service    *services.FacilityService
	registry   *services.WorkspaceRegistry
}

func newTestStack(n int) *testStack {
	s := &testStack{
		auth:       newStubAuth("secret1"),
		users:      newMemoryUsers(),
		facilities: &memoryFacilities{facilities: ecoCityFacilities(n)},
	}
	s.service = services.NewFacilityService(s.facilities, 6, 50)
	s.registry = services.NewWorkspaceRegistry(s.auth, func() *services.Workspace {
		return services.NewWorkspace(s.auth, s.users, s.service, zerolog.Nop(), nil)
	}, zerolog.Nop())
	return s
}

// signIn opens a workspace located in Eco City
func (s *testStack) signIn(t *testing.T) (string, *services.Workspace) {
	t.Helper()
	token, ws, err := s.registry.SignIn(context.Background(), "ada@ecogen.test", "secret1", "Eco City")
	require.NoError(t, err)
	t.Cleanup(s.registry.Close)
	return token, ws
}
