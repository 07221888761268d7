package domain

import (
	"context"
	"time"
)

// Repository is pure durable storage for playlists, versions and attachment
// metadata. No caching, no retries, no remote calls.
//
// Reads return a nil record (or empty slice) when nothing matches. Updates
// fail with ErrPlaylistNotFound / ErrVersionNotFound.
type Repository interface {
	// CreatePlaylist inserts a new playlist record
	CreatePlaylist(ctx context.Context, rec *PlaylistRecord) error

	// GetPlaylist returns the playlist or nil
	GetPlaylist(ctx context.Context, id string) (*PlaylistRecord, error)

	// UpdatePlaylist applies a partial update
	UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) error

	// DeletePlaylist removes the playlist and all of its versions and
	// attachments in one transaction
	DeletePlaylist(ctx context.Context, id string) error

	// ListPlaylists returns every playlist ordered by creation time
	ListPlaylists(ctx context.Context) ([]*PlaylistRecord, error)

	// GetPlaylistsByProject returns the playlists of one project
	GetPlaylistsByProject(ctx context.Context, projectID string) ([]*PlaylistRecord, error)

	// FindByNameProjectAndType returns a playlist matching all three, or nil
	FindByNameProjectAndType(ctx context.Context, name, projectID string, kind PlaylistKind) (*PlaylistRecord, error)

	// GetPlaylistVersions returns the non-removed versions of a playlist
	GetPlaylistVersions(ctx context.Context, playlistID string) ([]*VersionRecord, error)

	// GetVersion returns a version including soft-removed ones, or nil
	GetVersion(ctx context.Context, playlistID, versionID string) (*VersionRecord, error)

	// UpdateVersion applies a partial update
	UpdateVersion(ctx context.Context, playlistID, versionID string, update VersionUpdate) error

	// RemoveVersionFromPlaylist soft-removes a version
	RemoveVersionFromPlaylist(ctx context.Context, playlistID, versionID string) error

	// BulkAddVersions upserts versions; re-adding an existing id updates it
	BulkAddVersions(ctx context.Context, playlistID string, versions []VersionRecord) error

	// PurgeRemovedVersions hard-deletes soft-removed versions last modified
	// before cutoff. An empty playlistID sweeps every playlist.
	PurgeRemovedVersions(ctx context.Context, playlistID string, cutoff time.Time) (int, error)

	// SaveAttachment upserts attachment metadata
	SaveAttachment(ctx context.Context, rec *AttachmentRecord) error

	// GetAttachments returns attachment metadata for a version
	GetAttachments(ctx context.Context, playlistID, versionID string) ([]*AttachmentRecord, error)

	// DeleteAttachment removes attachment metadata; missing is not an error
	DeleteAttachment(ctx context.Context, playlistID, versionID, attachmentID string) error

	Close() error
}

// RemotePlaylist is a playlist or list as reported by the remote service
type RemotePlaylist struct {
	ID        string
	Name      string
	ProjectID string
	Kind      PlaylistKind
}

// RemoteVersion is a version as reported by the remote service
type RemoteVersion struct {
	ID            string
	Name          string
	VersionNumber int
}

// RemoteCreateRequest is sent when creating a remote counterpart
type RemoteCreateRequest struct {
	Name         string
	ProjectID    string
	CategoryID   string
	CategoryName string
	Description  string
}

// RemoteCreateResult mirrors the remote create response
type RemoteCreateResult struct {
	Success bool
	ID      string
	Error   string
}

// RemoteAddResult mirrors the remote add-versions response
type RemoteAddResult struct {
	Success          bool
	SyncedVersionIDs []string
	Error            string
}

// RemoteClient is the narrow contract consumed from the remote service client
type RemoteClient interface {
	GetPlaylists(ctx context.Context, projectID string) ([]RemotePlaylist, error)
	GetLists(ctx context.Context, projectID string) ([]RemotePlaylist, error)
	GetPlaylistVersions(ctx context.Context, remoteID string) ([]RemoteVersion, error)
	CreateReviewSession(ctx context.Context, req RemoteCreateRequest) (RemoteCreateResult, error)
	CreateList(ctx context.Context, req RemoteCreateRequest) (RemoteCreateResult, error)
	AddVersionsToPlaylist(ctx context.Context, remoteID string, versionIDs []string, kind PlaylistKind) (RemoteAddResult, error)
}
