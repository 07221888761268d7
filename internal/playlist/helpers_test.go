package playlist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/reviewnotes/internal/adapter"
	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) GetPlaylists(ctx context.Context, projectID string) ([]domain.RemotePlaylist, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RemotePlaylist), args.Error(1)
}

func (m *mockRemote) GetLists(ctx context.Context, projectID string) ([]domain.RemotePlaylist, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RemotePlaylist), args.Error(1)
}

func (m *mockRemote) GetPlaylistVersions(ctx context.Context, remoteID string) ([]domain.RemoteVersion, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RemoteVersion), args.Error(1)
}

func (m *mockRemote) CreateReviewSession(ctx context.Context, req domain.RemoteCreateRequest) (domain.RemoteCreateResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RemoteCreateResult), args.Error(1)
}

func (m *mockRemote) CreateList(ctx context.Context, req domain.RemoteCreateRequest) (domain.RemoteCreateResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RemoteCreateResult), args.Error(1)
}

func (m *mockRemote) AddVersionsToPlaylist(ctx context.Context, remoteID string, versionIDs []string, kind domain.PlaylistKind) (domain.RemoteAddResult, error) {
	args := m.Called(ctx, remoteID, versionIDs, kind)
	return args.Get(0).(domain.RemoteAddResult), args.Error(1)
}

func named(name string) interface{} {
	return mock.MatchedBy(func(r domain.RemoteCreateRequest) bool { return r.Name == name })
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) handle(e domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	remote *mockRemote
	repo   domain.Repository
	clock  *testClock
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith lets wrap sit between the service and the bolt repository.
func newFixtureWith(t *testing.T, wrap func(domain.Repository) domain.Repository) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	repo, err := store.OpenBolt(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var svcRepo domain.Repository = repo
	if wrap != nil {
		svcRepo = wrap(repo)
	}

	var n atomic.Int64
	rm := new(mockRemote)
	svc := NewService(svcRepo, rm,
		WithClock(clock.Now),
		WithLogger(adapter.NullLogger()),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
	)
	rec := &recorder{}
	svc.SubscribeAll(rec.handle)
	t.Cleanup(func() { svc.Close() })

	return &fixture{svc: svc, remote: rm, repo: repo, clock: clock, events: rec}
}

// noRemoteNames stubs the pre-flight lookups for project with no matches.
func (f *fixture) noRemoteNames(project string) {
	f.remote.On("GetPlaylists", mock.Anything, project).Return([]domain.RemotePlaylist{}, nil)
	f.remote.On("GetLists", mock.Anything, project).Return([]domain.RemotePlaylist{}, nil)
}

func (f *fixture) create(t *testing.T, req domain.CreatePlaylistRequest) *domain.Playlist {
	t.Helper()
	p, err := f.svc.CreatePlaylist(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) playlist(t *testing.T, id string) *domain.Playlist {
	t.Helper()
	p, err := f.svc.GetPlaylist(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func ids(vs []domain.Version) []string {
	return versionIDs(vs)
}
