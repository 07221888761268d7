package domain

import "time"

// EventType names a lifecycle event emitted by the playlist service
type EventType string

const (
	EventPlaylistCreated      EventType = "playlist-created"
	EventPlaylistUpdated      EventType = "playlist-updated"
	EventPlaylistDeleted      EventType = "playlist-deleted"
	EventSyncStarted          EventType = "sync-started"
	EventSyncProgress         EventType = "sync-progress"
	EventSyncCompleted        EventType = "sync-completed"
	EventSyncFailed           EventType = "sync-failed"
	EventSyncNameConflict     EventType = "sync-name-conflict-detected"
	EventSyncConflictResolved EventType = "sync-conflict-resolved"
	EventVersionsAdded        EventType = "versions-added"
	EventVersionRemoved       EventType = "version-removed"
	EventDraftSaved           EventType = "draft-saved"
	EventDraftCleared         EventType = "draft-cleared"
	EventNotePublished        EventType = "note-published"
)

// Event is the payload delivered to subscribers. Fields not relevant to a
// given type are left zero.
type Event struct {
	Type         EventType
	PlaylistID   string
	PlaylistName string
	VersionIDs   []string
	RemoteID     string
	Message      string
	Err          error

	// SimilarNames lists remote names close to a conflicting name
	SimilarNames []string

	At time.Time
}

// EventHandler receives events synchronously
type EventHandler func(Event)

// EventEmitter publishes events
type EventEmitter interface {
	Emit(Event)
}
