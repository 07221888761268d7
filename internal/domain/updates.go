package domain

import (
	"strings"
	"time"
)

// PlaylistUpdate is a partial update. Nil fields are left untouched.
// There is deliberately no ID field: a playlist is never re-keyed.
type PlaylistUpdate struct {
	Name             *string
	Description      *string
	CategoryID       *string
	CategoryName     *string
	LocalStatus      *LocalStatus
	RemoteSyncStatus *SyncStatus
	RemoteID         *string
	DeletedRemotely  *bool
	SyncedAt         *time.Time
}

// Apply mutates rec in place. Every backend routes playlist writes through here.
func (u PlaylistUpdate) Apply(rec *PlaylistRecord, now time.Time) error {
	if u.RemoteID != nil && rec.RemoteID != "" && *u.RemoteID != rec.RemoteID {
		return ErrRemoteIDImmutable
	}
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.Description != nil {
		rec.Description = *u.Description
	}
	if u.CategoryID != nil {
		rec.CategoryID = *u.CategoryID
	}
	if u.CategoryName != nil {
		rec.CategoryName = *u.CategoryName
	}
	if u.LocalStatus != nil {
		rec.LocalStatus = *u.LocalStatus
	}
	if u.RemoteSyncStatus != nil {
		rec.RemoteSyncStatus = *u.RemoteSyncStatus
	}
	if u.RemoteID != nil {
		rec.RemoteID = *u.RemoteID
	}
	if u.DeletedRemotely != nil {
		rec.DeletedRemotely = *u.DeletedRemotely
	}
	if u.SyncedAt != nil {
		t := *u.SyncedAt
		rec.SyncedAt = &t
	}
	rec.UpdatedAt = now
	return nil
}

// VersionUpdate is a partial update of a version. Nil fields are left untouched.
type VersionUpdate struct {
	Name          *string
	VersionNumber *int
	DraftContent  *string
	LabelID       *string
	NoteStatus    *NoteStatus
	ManuallyAdded *bool
	IsRemoved     *bool
}

// IsExplicitClear reports whether the update blanks the draft body and
// resets the note to empty. Only an explicit clear may downgrade a
// published note.
func (u VersionUpdate) IsExplicitClear() bool {
	return u.DraftContent != nil && strings.TrimSpace(*u.DraftContent) == "" &&
		u.NoteStatus != nil && *u.NoteStatus == NoteStatusEmpty
}

// Apply mutates rec in place. This is the single write path for versions:
// a published note keeps its status unless the update is an explicit clear.
func (u VersionUpdate) Apply(rec *VersionRecord, now time.Time) {
	if u.Name != nil {
		rec.Name = *u.Name
	}
	if u.VersionNumber != nil {
		rec.VersionNumber = *u.VersionNumber
	}
	if u.DraftContent != nil {
		rec.DraftContent = *u.DraftContent
	}
	if u.LabelID != nil {
		rec.LabelID = *u.LabelID
	}
	if u.NoteStatus != nil {
		downgrade := rec.NoteStatus == NoteStatusPublished && *u.NoteStatus != NoteStatusPublished
		if !downgrade || u.IsExplicitClear() {
			rec.NoteStatus = *u.NoteStatus
		}
	}
	if u.ManuallyAdded != nil {
		rec.ManuallyAdded = *u.ManuallyAdded
	}
	if u.IsRemoved != nil {
		rec.IsRemoved = *u.IsRemoved
	}
	rec.LastModified = now
}

// MergeVersion upserts incoming over existing. Display metadata and
// membership come from incoming; draft fields survive a re-add so a
// soft-removed version recovers its note.
func MergeVersion(existing *VersionRecord, incoming VersionRecord, now time.Time) VersionRecord {
	if existing == nil {
		incoming.IsRemoved = false
		if incoming.NoteStatus == "" {
			incoming.NoteStatus = NoteStatusFor(incoming.DraftContent)
		}
		if incoming.AddedAt.IsZero() {
			incoming.AddedAt = now
		}
		incoming.LastModified = now
		return incoming
	}

	merged := *existing
	merged.IsRemoved = false
	merged.ManuallyAdded = incoming.ManuallyAdded
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.VersionNumber != 0 {
		merged.VersionNumber = incoming.VersionNumber
	}
	if incoming.DraftContent != "" {
		VersionUpdate{
			DraftContent: &incoming.DraftContent,
			NoteStatus:   ptr(NoteStatusFor(incoming.DraftContent)),
		}.Apply(&merged, now)
	}
	if incoming.LabelID != "" {
		merged.LabelID = incoming.LabelID
	}
	if existing.IsRemoved {
		merged.AddedAt = now
	}
	merged.LastModified = now
	return merged
}

func ptr[T any](v T) *T { return &v }
