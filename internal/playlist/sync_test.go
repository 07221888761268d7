package playlist

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSyncCreatesRemoteAndKeepsStableID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList, ProjectID: "P1"})
	assert.Equal(t, domain.LocalStatusDraft, p.LocalStatus)
	assert.Equal(t, domain.SyncStatusNotSynced, p.RemoteSyncStatus)
	assert.Empty(t, p.RemoteID)

	require.NoError(t, f.svc.AddVersionsToPlaylist(ctx, p.ID, []domain.VersionInput{
		{ID: "A", ManuallyAdded: true},
		{ID: "B", ManuallyAdded: true},
	}))

	f.noRemoteNames("P1")
	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()
	f.remote.On("AddVersionsToPlaylist", mock.Anything, "R1", []string{"A", "B"}, domain.KindList).
		Return(domain.RemoteAddResult{Success: true, SyncedVersionIDs: []string{"A", "B"}}, nil).Once()

	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))

	got := f.playlist(t, p.ID)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "R1", got.RemoteID)
	assert.Equal(t, domain.SyncStatusSynced, got.RemoteSyncStatus)
	assert.Equal(t, domain.LocalStatusSynced, got.LocalStatus)
	require.NotNil(t, got.SyncedAt)
	require.Len(t, got.Versions, 2)
	for _, v := range got.Versions {
		assert.False(t, v.ManuallyAdded, v.ID)
	}

	assert.Len(t, f.events.ofType(domain.EventSyncStarted), 1)
	assert.NotEmpty(t, f.events.ofType(domain.EventSyncProgress))
	completed := f.events.ofType(domain.EventSyncCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "R1", completed[0].RemoteID)
	assert.Empty(t, f.svc.GetActiveSyncs())
	f.remote.AssertExpectations(t)

	// Synced is terminal: another sync does nothing.
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))
	f.remote.AssertNumberOfCalls(t, "CreateList", 1)
}

func TestSyncReviewSessionUsesReviewSessionAPI(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Lighting", Kind: domain.KindReviewSession})

	f.remote.On("CreateReviewSession", mock.Anything, named("Lighting")).
		Return(domain.RemoteCreateResult{Success: true, ID: "RS1"}, nil).Once()

	require.NoError(t, f.svc.SyncPlaylist(context.Background(), p.ID))
	assert.Equal(t, "RS1", f.playlist(t, p.ID).RemoteID)
	f.remote.AssertNotCalled(t, "CreateList", mock.Anything, mock.Anything)
	f.remote.AssertNotCalled(t, "GetPlaylists", mock.Anything, mock.Anything)
}

func TestConcurrentSyncCollapsesToOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()

	first := make(chan error, 1)
	go func() { first <- f.svc.SyncPlaylist(ctx, p.ID) }()

	<-entered
	assert.Equal(t, []string{p.ID}, f.svc.GetActiveSyncs())
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))

	close(release)
	require.NoError(t, <-first)

	f.remote.AssertNumberOfCalls(t, "CreateList", 1)
	assert.Len(t, f.events.ofType(domain.EventSyncCompleted), 1)
	assert.Empty(t, f.svc.GetActiveSyncs())
}

func TestPreflightConflictPausesSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Review1", Kind: domain.KindList, ProjectID: "P2"})

	f.remote.On("GetPlaylists", mock.Anything, "P2").Return([]domain.RemotePlaylist{}, nil)
	f.remote.On("GetLists", mock.Anything, "P2").Return([]domain.RemotePlaylist{
		{ID: "R5", Name: "Review1", ProjectID: "P2", Kind: domain.KindList},
		{ID: "R6", Name: "Review1-old", ProjectID: "P2", Kind: domain.KindList},
	}, nil)

	err := f.svc.SyncPlaylist(ctx, p.ID)
	var conflict *domain.NameConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, domain.ErrNameConflict)
	assert.Equal(t, "Review1", conflict.Name)

	assert.Equal(t, domain.SyncStatusFailed, f.playlist(t, p.ID).RemoteSyncStatus)
	assert.Equal(t, []string{p.ID}, f.svc.GetActiveSyncs())

	evs := f.events.ofType(domain.EventSyncNameConflict)
	require.Len(t, evs, 1)
	assert.Equal(t, "Review1", evs[0].PlaylistName)
	assert.NotEmpty(t, evs[0].Message)
	assert.Contains(t, evs[0].SimilarNames, "Review1")
	assert.Contains(t, evs[0].SimilarNames, "Review1-old")
	assert.Empty(t, f.events.ofType(domain.EventSyncFailed))
	f.remote.AssertNotCalled(t, "CreateList", mock.Anything, mock.Anything)

	// While paused, another sync is a no-op.
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))
	f.remote.AssertNotCalled(t, "CreateList", mock.Anything, mock.Anything)

	f.remote.On("CreateList", mock.Anything, named("Review1-b")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R7"}, nil).Once()

	require.NoError(t, f.svc.ResolveConflictAndRetry(ctx, p.ID, "Review1-b"))

	got := f.playlist(t, p.ID)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Review1-b", got.Name)
	assert.Equal(t, "R7", got.RemoteID)
	assert.Equal(t, domain.SyncStatusSynced, got.RemoteSyncStatus)
	assert.Empty(t, f.svc.GetActiveSyncs())
	assert.Len(t, f.events.ofType(domain.EventSyncConflictResolved), 1)
}

func TestCancelSyncDueToConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Review1", Kind: domain.KindList, ProjectID: "P2"})

	f.remote.On("GetPlaylists", mock.Anything, "P2").Return([]domain.RemotePlaylist{{ID: "R5", Name: "Review1"}}, nil)
	f.remote.On("GetLists", mock.Anything, "P2").Return(nil, errors.New("lists endpoint down"))

	require.ErrorIs(t, f.svc.SyncPlaylist(ctx, p.ID), domain.ErrNameConflict)
	require.Equal(t, []string{p.ID}, f.svc.GetActiveSyncs())

	require.NoError(t, f.svc.CancelSyncDueToConflict(ctx, p.ID))
	assert.Empty(t, f.svc.GetActiveSyncs())
	assert.Equal(t, domain.SyncStatusNotSynced, f.playlist(t, p.ID).RemoteSyncStatus)
}

func TestRemoteDuplicateErrorIsTreatedAsConflict(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList, ProjectID: "P1"})

	f.noRemoteNames("P1")
	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: false, Error: "List with this name already exists in project"}, nil).Once()

	err := f.svc.SyncPlaylist(context.Background(), p.ID)
	assert.ErrorIs(t, err, domain.ErrNameConflict)
	assert.Equal(t, []string{p.ID}, f.svc.GetActiveSyncs())
	assert.Len(t, f.events.ofType(domain.EventSyncNameConflict), 1)
	assert.Empty(t, f.events.ofType(domain.EventSyncFailed))
}

func TestRemoteFailureMarksFailedAndAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList})

	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{}, errors.New("503 service unavailable")).Once()

	err := f.svc.SyncPlaylist(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrRemoteOperation)
	assert.NotErrorIs(t, err, domain.ErrNameConflict)

	got := f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusFailed, got.RemoteSyncStatus)
	assert.Empty(t, got.RemoteID)
	assert.Empty(t, f.svc.GetActiveSyncs())

	failed := f.events.ofType(domain.EventSyncFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Message, "503")

	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))
	assert.Equal(t, domain.SyncStatusSynced, f.playlist(t, p.ID).RemoteSyncStatus)
}

func TestPushFailureKeepsRemoteIDAndRetryOnlyPushes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{
		Name: "Dailies", Kind: domain.KindList,
		Versions: []domain.VersionInput{{ID: "A", ManuallyAdded: true}},
	})

	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()
	f.remote.On("AddVersionsToPlaylist", mock.Anything, "R1", []string{"A"}, domain.KindList).
		Return(domain.RemoteAddResult{Success: false, Error: "timeout"}, nil).Once()

	err := f.svc.SyncPlaylist(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrRemoteOperation)

	got := f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusFailed, got.RemoteSyncStatus)
	assert.Equal(t, "R1", got.RemoteID)
	assert.True(t, got.Versions[0].ManuallyAdded)

	f.remote.On("AddVersionsToPlaylist", mock.Anything, "R1", []string{"A"}, domain.KindList).
		Return(domain.RemoteAddResult{Success: true}, nil).Once()
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))

	got = f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusSynced, got.RemoteSyncStatus)
	assert.False(t, got.Versions[0].ManuallyAdded)
	f.remote.AssertNumberOfCalls(t, "CreateList", 1)
}

func TestPartialPushMarksFailedAndRetryPushesTheRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{
		Name: "Dailies", Kind: domain.KindList,
		Versions: []domain.VersionInput{
			{ID: "A", ManuallyAdded: true},
			{ID: "B", ManuallyAdded: true},
		},
	})

	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()
	f.remote.On("AddVersionsToPlaylist", mock.Anything, "R1", []string{"A", "B"}, domain.KindList).
		Return(domain.RemoteAddResult{Success: true, SyncedVersionIDs: []string{"A"}}, nil).Once()

	err := f.svc.SyncPlaylist(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrRemoteOperation)
	assert.ErrorContains(t, err, "1 of 2 versions rejected")

	got := f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusFailed, got.RemoteSyncStatus)
	assert.Equal(t, "R1", got.RemoteID)
	manual := map[string]bool{}
	for _, v := range got.Versions {
		manual[v.ID] = v.ManuallyAdded
	}
	assert.Equal(t, map[string]bool{"A": false, "B": true}, manual)
	assert.Len(t, f.events.ofType(domain.EventSyncFailed), 1)
	assert.Empty(t, f.events.ofType(domain.EventSyncCompleted))

	f.remote.On("AddVersionsToPlaylist", mock.Anything, "R1", []string{"A", "B"}, domain.KindList).
		Return(domain.RemoteAddResult{Success: true, SyncedVersionIDs: []string{"A", "B"}}, nil).Once()
	require.NoError(t, f.svc.SyncPlaylist(ctx, p.ID))

	got = f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusSynced, got.RemoteSyncStatus)
	for _, v := range got.Versions {
		assert.False(t, v.ManuallyAdded, v.ID)
	}
	f.remote.AssertNumberOfCalls(t, "CreateList", 1)
	f.remote.AssertNumberOfCalls(t, "AddVersionsToPlaylist", 2)
}

// failingSyncedWrite rejects the write that marks a playlist synced.
type failingSyncedWrite struct {
	domain.Repository
}

func (r failingSyncedWrite) UpdatePlaylist(ctx context.Context, id string, u domain.PlaylistUpdate) error {
	if u.RemoteSyncStatus != nil && *u.RemoteSyncStatus == domain.SyncStatusSynced {
		return domain.WriteError("update playlist", errors.New("disk full"))
	}
	return r.Repository.UpdatePlaylist(ctx, id, u)
}

func TestFinalWriteFailureMarksFailed(t *testing.T) {
	f := newFixtureWith(t, func(repo domain.Repository) domain.Repository {
		return failingSyncedWrite{repo}
	})
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList})

	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()

	err := f.svc.SyncPlaylist(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrDurableWrite)

	got := f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusFailed, got.RemoteSyncStatus)
	assert.Equal(t, "R1", got.RemoteID)
	require.Len(t, f.events.ofType(domain.EventSyncFailed), 1)
	assert.Empty(t, f.svc.GetActiveSyncs())
}

func TestResolveDuringRunningSyncIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{Name: "Dailies", Kind: domain.KindList})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()

	first := make(chan error, 1)
	go func() { first <- f.svc.SyncPlaylist(ctx, p.ID) }()

	<-entered
	require.NoError(t, f.svc.ResolveConflictAndRetry(ctx, p.ID, "Dailies-b"))
	assert.Equal(t, []string{p.ID}, f.svc.GetActiveSyncs())

	close(release)
	require.NoError(t, <-first)

	got := f.playlist(t, p.ID)
	assert.Equal(t, "Dailies", got.Name)
	assert.Equal(t, domain.SyncStatusSynced, got.RemoteSyncStatus)
	f.remote.AssertNumberOfCalls(t, "CreateList", 1)
	assert.Empty(t, f.events.ofType(domain.EventSyncConflictResolved))
}

func TestCancelSyncDuringCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, domain.CreatePlaylistRequest{
		Name: "Dailies", Kind: domain.KindList,
		Versions: []domain.VersionInput{{ID: "A"}},
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.On("CreateList", mock.Anything, named("Dailies")).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil).Once()

	done := make(chan error, 1)
	go func() { done <- f.svc.SyncPlaylist(ctx, p.ID) }()

	<-entered
	require.NoError(t, f.svc.CancelSync(ctx, p.ID))
	assert.Empty(t, f.svc.GetActiveSyncs())
	close(release)

	assert.ErrorIs(t, <-done, domain.ErrSyncCancelled)
	got := f.playlist(t, p.ID)
	assert.Equal(t, domain.SyncStatusNotSynced, got.RemoteSyncStatus)
	assert.Equal(t, "R1", got.RemoteID, "remote identity is kept")
	f.remote.AssertNotCalled(t, "AddVersionsToPlaylist", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events.ofType(domain.EventSyncCompleted))
}

func TestSyncPlaylistsIsBestEffort(t *testing.T) {
	f := newFixture(t)
	names := []string{"one", "two", "three", "four"}
	var idsToSync []string
	for _, n := range names {
		idsToSync = append(idsToSync, f.create(t, domain.CreatePlaylistRequest{Name: n, Kind: domain.KindList}).ID)
	}

	f.remote.On("CreateList", mock.Anything, named("one")).Return(domain.RemoteCreateResult{Success: true, ID: "R1"}, nil)
	f.remote.On("CreateList", mock.Anything, named("two")).Return(domain.RemoteCreateResult{Success: false, Error: "quota exceeded"}, nil)
	f.remote.On("CreateList", mock.Anything, named("three")).Return(domain.RemoteCreateResult{Success: true, ID: "R3"}, nil)
	f.remote.On("CreateList", mock.Anything, named("four")).Return(domain.RemoteCreateResult{Success: true, ID: "R4"}, nil)

	results := f.svc.SyncPlaylists(context.Background(), idsToSync)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, idsToSync[i], r.PlaylistID)
		if names[i] == "two" {
			assert.ErrorIs(t, r.Err, domain.ErrRemoteOperation)
			continue
		}
		assert.NoError(t, r.Err, names[i])
		assert.Equal(t, domain.SyncStatusSynced, f.playlist(t, r.PlaylistID).RemoteSyncStatus)
	}
}

func TestSyncUnknownPlaylist(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SyncPlaylist(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPlaylistNotFound)
	assert.Empty(t, f.svc.GetActiveSyncs())
}

func TestDuplicateNamePattern(t *testing.T) {
	for _, msg := range []string{
		"duplicate key value violates unique constraint",
		"Playlist already exists",
		"name is already taken",
		"Name in use",
	} {
		assert.True(t, isDuplicateNameError(msg), msg)
	}
	for _, msg := range []string{"", "timeout", "permission denied"} {
		assert.False(t, isDuplicateNameError(msg), msg)
	}
}
