package services_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	"github.com/ecogen/ecogen/backend/internal/domain/repositories"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// fakeFacilityRepo is an in-memory FacilityRepository. gate, when set, runs
// before every Count and List and may block.
type fakeFacilityRepo struct {
	mu          sync.Mutex
	facilities  []*entities.Facility
	countCalls  int
	listCalls   int
	invalidated int
	countErr    error
	listErr     error
	gate        func(q repositories.FacilityQuery)
}

func newFakeFacilityRepo(facilities ...*entities.Facility) *fakeFacilityRepo {
	return &fakeFacilityRepo{facilities: facilities}
}

func (f *fakeFacilityRepo) set(facilities ...*entities.Facility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facilities = facilities
}

func (f *fakeFacilityRepo) calls() (count, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls, f.listCalls
}

func (f *fakeFacilityRepo) matchLocked(q repositories.FacilityQuery) []*entities.Facility {
	var out []*entities.Facility
	for _, facility := range f.facilities {
		if q.City != "" && !strings.Contains(strings.ToLower(facility.City), strings.ToLower(q.City)) {
			continue
		}
		if q.Type != "" && facility.Type != q.Type {
			continue
		}
		out = append(out, facility)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (f *fakeFacilityRepo) runGate(q repositories.FacilityQuery) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate(q)
	}
}

func (f *fakeFacilityRepo) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, facility := range f.facilities {
		if facility.ID == id {
			return facility, nil
		}
	}
	return nil, apperrors.NewNotFoundError("facility not found")
}

func (f *fakeFacilityRepo) Count(ctx context.Context, q repositories.FacilityQuery) (int, error) {
	f.mu.Lock()
	f.countCalls++
	f.mu.Unlock()

	f.runGate(q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.matchLocked(q)), nil
}

func (f *fakeFacilityRepo) List(ctx context.Context, q repositories.FacilityQuery) ([]*entities.Facility, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	f.runGate(q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	matches := f.matchLocked(q)
	if q.Offset >= len(matches) {
		return []*entities.Facility{}, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > len(matches) {
		end = len(matches)
	}
	return matches[q.Offset:end], nil
}

func (f *fakeFacilityRepo) CountByType(ctx context.Context, city string) (map[entities.FacilityType]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := map[entities.FacilityType]int{}
	for _, facility := range f.matchLocked(repositories.FacilityQuery{City: city}) {
		counts[facility.Type]++
	}
	return counts, nil
}

func (f *fakeFacilityRepo) InvalidateCount(ctx context.Context, q repositories.FacilityQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return nil
}

// facilitiesIn builds n facilities in city named "<prefix> 01".."<prefix> n"
func facilitiesIn(city, prefix string, facilityType entities.FacilityType, n int) []*entities.Facility {
	out := make([]*entities.Facility, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &entities.Facility{
			ID:        fmt.Sprintf("%s-%s-%02d", strings.ToLower(city), prefix, i),
			Name:      fmt.Sprintf("%s %02d", prefix, i),
			Type:      facilityType,
			City:      city,
			Address:   fmt.Sprintf("%d Green Road", i),
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func names(items []*entities.Facility) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

// fakeUserRepo is an in-memory UserRepository
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*entities.User
	err       error
	createErr error
}

func newFakeUserRepo(users ...*entities.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*entities.User{}}
	for _, u := range users {
		repo.users[u.ID] = u.Clone()
	}
	return repo
}

func (f *fakeUserRepo) get(id string) *entities.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Clone()
}

func (f *fakeUserRepo) Create(ctx context.Context, user *entities.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.users[user.ID]; ok {
		return apperrors.NewConflictError("profile exists")
	}
	f.users[user.ID] = user.Clone()
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("profile not found")
	}
	return user.Clone(), nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id string, update repositories.UserUpdate) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("profile not found")
	}
	if update.Name != nil {
		user.Name = update.Name
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	user.UpdatedAt = time.Now()
	return user.Clone(), nil
}

// MockAuthProvider is a mock implementation of AuthProvider
type MockAuthProvider struct {
	mock.Mock
}

func (m *MockAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockAuthProvider) SignUp(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthProvider) RemoveAccount(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthProvider) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthProvider) GetSession(ctx context.Context, token string) (*entities.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockAuthProvider) Subscribe(ctx context.Context) (<-chan *entities.SessionEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.SessionEvent), args.Error(1)
}

func (m *MockAuthProvider) PublishProfileUpdated(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// recordingNotifier collects notices
type recordingNotifier struct {
	mu      sync.Mutex
	notices []providers.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, notice providers.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) all() []providers.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]providers.Notice(nil), r.notices...)
}
