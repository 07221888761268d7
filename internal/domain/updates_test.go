package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNoteStatusFor(t *testing.T) {
	assert.Equal(t, NoteStatusEmpty, NoteStatusFor(""))
	assert.Equal(t, NoteStatusEmpty, NoteStatusFor("  \n\t"))
	assert.Equal(t, NoteStatusDraft, NoteStatusFor("needs more grain"))
}

func TestVersionUpdateKeepsPublished(t *testing.T) {
	rec := VersionRecord{ID: "A", PlaylistID: "pl", NoteStatus: NoteStatusPublished, DraftContent: "final"}

	VersionUpdate{DraftContent: ptr("edited"), NoteStatus: ptr(NoteStatusDraft)}.Apply(&rec, t0)
	assert.Equal(t, NoteStatusPublished, rec.NoteStatus)
	assert.Equal(t, "edited", rec.DraftContent)
	assert.Equal(t, t0, rec.LastModified)

	VersionUpdate{DraftContent: ptr(""), NoteStatus: ptr(NoteStatusEmpty)}.Apply(&rec, t0)
	assert.Equal(t, NoteStatusEmpty, rec.NoteStatus)
}

func TestVersionUpdateEmptyStatusWithContentIsNotAClear(t *testing.T) {
	rec := VersionRecord{NoteStatus: NoteStatusPublished}
	u := VersionUpdate{DraftContent: ptr("still here"), NoteStatus: ptr(NoteStatusEmpty)}
	assert.False(t, u.IsExplicitClear())

	u.Apply(&rec, t0)
	assert.Equal(t, NoteStatusPublished, rec.NoteStatus)
}

func TestPlaylistUpdateRemoteID(t *testing.T) {
	rec := PlaylistRecord{ID: "pl"}
	require.NoError(t, PlaylistUpdate{RemoteID: ptr("R1")}.Apply(&rec, t0))
	assert.Equal(t, "R1", rec.RemoteID)

	// Re-setting the same id is allowed.
	require.NoError(t, PlaylistUpdate{RemoteID: ptr("R1")}.Apply(&rec, t0))

	err := PlaylistUpdate{RemoteID: ptr("R2"), Name: ptr("renamed")}.Apply(&rec, t0)
	assert.ErrorIs(t, err, ErrRemoteIDImmutable)
	assert.Empty(t, rec.Name)
}

func TestMergeVersion(t *testing.T) {
	t.Run("new version", func(t *testing.T) {
		got := MergeVersion(nil, VersionRecord{ID: "A", PlaylistID: "pl", DraftContent: "hi"}, t0)
		assert.Equal(t, NoteStatusDraft, got.NoteStatus)
		assert.Equal(t, t0, got.AddedAt)
		assert.False(t, got.IsRemoved)
	})

	t.Run("re-add preserves draft", func(t *testing.T) {
		existing := VersionRecord{
			ID: "A", PlaylistID: "pl", Name: "old", DraftContent: "keep", LabelID: "L",
			NoteStatus: NoteStatusDraft, IsRemoved: true, ManuallyAdded: true, AddedAt: t0,
		}
		later := t0.Add(time.Hour)
		got := MergeVersion(&existing, VersionRecord{ID: "A", Name: "new", VersionNumber: 4}, later)
		assert.False(t, got.IsRemoved)
		assert.False(t, got.ManuallyAdded)
		assert.Equal(t, "new", got.Name)
		assert.Equal(t, 4, got.VersionNumber)
		assert.Equal(t, "keep", got.DraftContent)
		assert.Equal(t, "L", got.LabelID)
		assert.Equal(t, NoteStatusDraft, got.NoteStatus)
		assert.Equal(t, later, got.AddedAt)
	})

	t.Run("incoming draft never downgrades published", func(t *testing.T) {
		existing := VersionRecord{ID: "A", PlaylistID: "pl", DraftContent: "done", NoteStatus: NoteStatusPublished}
		got := MergeVersion(&existing, VersionRecord{ID: "A", DraftContent: "other"}, t0)
		assert.Equal(t, NoteStatusPublished, got.NoteStatus)
		assert.Equal(t, "other", got.DraftContent)
	})
}

func TestEntityGuards(t *testing.T) {
	valid := PlaylistRecord{
		ID: "pl", Name: "Dailies", Kind: KindList,
		LocalStatus: LocalStatusDraft, RemoteSyncStatus: SyncStatusNotSynced,
	}
	assert.True(t, IsPlaylistEntity(valid))
	assert.True(t, IsPlaylistEntity(&valid))
	assert.False(t, IsPlaylistEntity((*PlaylistRecord)(nil)))
	assert.False(t, IsPlaylistEntity("pl"))

	synced := valid
	synced.RemoteSyncStatus = SyncStatusSynced
	assert.False(t, IsPlaylistEntity(synced), "synced requires a remote id")
	synced.RemoteID = "R1"
	assert.True(t, IsPlaylistEntity(synced))

	v := VersionRecord{ID: "A", PlaylistID: "pl", NoteStatus: NoteStatusEmpty}
	assert.True(t, IsVersionEntity(v))
	assert.False(t, IsVersionEntity(VersionRecord{ID: "A", PlaylistID: "pl", NoteStatus: "bogus"}))
	assert.False(t, IsVersionEntity(valid))
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("disk full")
	err := WriteError("add versions", base)
	assert.ErrorIs(t, err, ErrDurableWrite)
	assert.ErrorIs(t, err, base)

	var dw *DurableWriteError
	require.ErrorAs(t, err, &dw)
	assert.Equal(t, "add versions", dw.Op)

	assert.Equal(t, ErrPlaylistNotFound, WriteError("x", ErrPlaylistNotFound))
	assert.Nil(t, WriteError("x", nil))

	var conflict error = &NameConflictError{PlaylistID: "pl", Name: "Dailies"}
	assert.ErrorIs(t, conflict, ErrNameConflict)
	assert.ErrorIs(t, &RemoteError{Op: "create", Message: "boom"}, ErrRemoteOperation)
}

func TestCreatePlaylistRequestValidate(t *testing.T) {
	assert.NoError(t, CreatePlaylistRequest{Name: "Dailies", Kind: KindReviewSession}.Validate())
	assert.Error(t, CreatePlaylistRequest{Kind: KindList}.Validate())
	assert.Error(t, CreatePlaylistRequest{Name: "x", Kind: "folder"}.Validate())
}
