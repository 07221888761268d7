package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PlaylistKind selects which remote creation API a playlist maps to
type PlaylistKind string

const (
	KindReviewSession PlaylistKind = "reviewSession"
	KindList          PlaylistKind = "list"
)

// LocalStatus is the lifecycle stage of a playlist, independent of remote state
type LocalStatus string

const (
	LocalStatusDraft       LocalStatus = "draft"
	LocalStatusReadyToSync LocalStatus = "readyToSync"
	LocalStatusSynced      LocalStatus = "synced"
)

// SyncStatus is the state of the remote sync operation.
//
//	notSynced -> syncing -> synced | failed
//	failed    -> syncing (retry)
type SyncStatus string

const (
	SyncStatusNotSynced SyncStatus = "notSynced"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusSynced    SyncStatus = "synced"
	SyncStatusFailed    SyncStatus = "failed"
)

// NoteStatus tracks the draft note attached to a version
type NoteStatus string

const (
	NoteStatusEmpty     NoteStatus = "empty"
	NoteStatusDraft     NoteStatus = "draft"
	NoteStatusPublished NoteStatus = "published"
)

// NoteStatusFor derives the status a draft body implies.
func NoteStatusFor(content string) NoteStatus {
	if strings.TrimSpace(content) == "" {
		return NoteStatusEmpty
	}
	return NoteStatusDraft
}

// PlaylistRecord is the durable form of a playlist.
// ID is minted once at creation and never reassigned.
type PlaylistRecord struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Kind             PlaylistKind `json:"kind"`
	LocalStatus      LocalStatus  `json:"localStatus"`
	RemoteSyncStatus SyncStatus   `json:"remoteSyncStatus"`
	RemoteID         string       `json:"remoteId,omitempty"`
	ProjectID        string       `json:"projectId,omitempty"`
	CategoryID       string       `json:"categoryId,omitempty"`
	CategoryName     string       `json:"categoryName,omitempty"`
	Description      string       `json:"description,omitempty"`
	DeletedRemotely  bool         `json:"deletedRemotely,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	SyncedAt         *time.Time   `json:"syncedAt,omitempty"`
}

// Validate checks the record shape and the synced-implies-remoteId invariant.
func (r PlaylistRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Kind, validation.Required, validation.In(KindReviewSession, KindList)),
		validation.Field(&r.LocalStatus, validation.Required,
			validation.In(LocalStatusDraft, LocalStatusReadyToSync, LocalStatusSynced)),
		validation.Field(&r.RemoteSyncStatus, validation.Required,
			validation.In(SyncStatusNotSynced, SyncStatusSyncing, SyncStatusSynced, SyncStatusFailed)),
		validation.Field(&r.RemoteID,
			validation.When(r.RemoteSyncStatus == SyncStatusSynced, validation.Required)),
	)
}

// IsSynced reports whether the playlist has completed a sync.
func (r PlaylistRecord) IsSynced() bool {
	return r.RemoteSyncStatus == SyncStatusSynced && r.RemoteID != ""
}

// VersionRecord is the durable form of a version, keyed by (PlaylistID, ID).
type VersionRecord struct {
	ID            string     `json:"id"`
	PlaylistID    string     `json:"playlistId"`
	Name          string     `json:"name"`
	VersionNumber int        `json:"versionNumber"`
	DraftContent  string     `json:"draftContent,omitempty"`
	LabelID       string     `json:"labelId,omitempty"`
	NoteStatus    NoteStatus `json:"noteStatus"`
	ManuallyAdded bool       `json:"manuallyAdded"`
	IsRemoved     bool       `json:"isRemoved"`
	AddedAt       time.Time  `json:"addedAt"`
	LastModified  time.Time  `json:"lastModified"`
}

func (r VersionRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.PlaylistID, validation.Required),
		validation.Field(&r.NoteStatus, validation.Required,
			validation.In(NoteStatusEmpty, NoteStatusDraft, NoteStatusPublished)),
		validation.Field(&r.VersionNumber, validation.Min(0)),
	)
}

// AttachmentRecord holds attachment metadata only. Payload bytes are owned
// by whoever produced the attachment and are never persisted here.
type AttachmentRecord struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlistId"`
	VersionID  string    `json:"versionId"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	PreviewRef string    `json:"previewRef,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r AttachmentRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.PlaylistID, validation.Required),
		validation.Field(&r.VersionID, validation.Required),
		validation.Field(&r.MimeType, validation.Required),
		validation.Field(&r.Size, validation.Min(int64(0))),
	)
}

// IsPlaylistEntity reports whether v is a well-formed playlist record.
func IsPlaylistEntity(v any) bool {
	switch r := v.(type) {
	case PlaylistRecord:
		return r.Validate() == nil
	case *PlaylistRecord:
		return r != nil && r.Validate() == nil
	default:
		return false
	}
}

// IsVersionEntity reports whether v is a well-formed version record.
func IsVersionEntity(v any) bool {
	switch r := v.(type) {
	case VersionRecord:
		return r.Validate() == nil
	case *VersionRecord:
		return r != nil && r.Validate() == nil
	default:
		return false
	}
}

// Playlist is the hydrated, caller-facing playlist
type Playlist struct {
	ID               string
	Name             string
	Kind             PlaylistKind
	LocalStatus      LocalStatus
	RemoteSyncStatus SyncStatus
	RemoteID         string
	ProjectID        string
	CategoryID       string
	CategoryName     string
	Description      string
	DeletedRemotely  bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SyncedAt         *time.Time
	Versions         []Version
}

// ReadOnly reports whether the playlist only survives as a local snapshot.
func (p *Playlist) ReadOnly() bool { return p.DeletedRemotely }

// Version is the caller-facing version
type Version struct {
	ID            string
	PlaylistID    string
	Name          string
	VersionNumber int
	DraftContent  string
	LabelID       string
	NoteStatus    NoteStatus
	ManuallyAdded bool
	AddedAt       time.Time
	LastModified  time.Time
}

// VersionInput describes a version being added to a playlist.
// An empty ID is only valid for manually added versions; one is minted.
type VersionInput struct {
	ID            string
	Name          string
	VersionNumber int
	ManuallyAdded bool
}

// CreatePlaylistRequest is the input to playlist creation
type CreatePlaylistRequest struct {
	Name         string
	Kind         PlaylistKind
	ProjectID    string
	CategoryID   string
	CategoryName string
	Description  string

	// RemoteID imports a playlist that already exists remotely.
	RemoteID string
	Versions []VersionInput
}

func (r CreatePlaylistRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Kind, validation.Required, validation.In(KindReviewSession, KindList)),
		validation.Field(&r.Description, validation.Length(0, 4096)),
	)
}

// Draft is the note state of one version
type Draft struct {
	Content string
	LabelID string
	Status  NoteStatus
}

// Snapshot is the last known state of a playlist whose remote counterpart
// disappeared. It lives in memory for the rest of the session.
type Snapshot struct {
	PlaylistID string
	Name       string
	Versions   []Version
	TakenAt    time.Time
}

// PlaylistEdit is a caller edit of a playlist's descriptive fields.
// Sync state is owned by the sync engine and cannot be edited directly.
type PlaylistEdit struct {
	Name         *string
	Description  *string
	CategoryID   *string
	CategoryName *string
}

func (e PlaylistEdit) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&e.Description, validation.Length(0, 4096)),
	)
}

// Update converts the edit into a storage update.
func (e PlaylistEdit) Update() PlaylistUpdate {
	return PlaylistUpdate{
		Name:         e.Name,
		Description:  e.Description,
		CategoryID:   e.CategoryID,
		CategoryName: e.CategoryName,
	}
}

// AttachmentInput describes attachment metadata supplied by a caller
type AttachmentInput struct {
	Name       string
	MimeType   string
	Size       int64
	PreviewRef string
}
