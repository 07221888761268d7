package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates a referenced record does not exist in durable storage
	ErrNotFound = errors.New("not found")

	// ErrPlaylistNotFound indicates the playlist id is unknown
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", ErrNotFound)

	// ErrVersionNotFound indicates the (playlist, version) pair is unknown
	ErrVersionNotFound = fmt.Errorf("version %w", ErrNotFound)

	// ErrDurableWrite indicates the storage layer rejected a write
	ErrDurableWrite = errors.New("durable write failed")

	// ErrNameConflict indicates a same-named entity already exists remotely
	ErrNameConflict = errors.New("remote name conflict")

	// ErrRemoteOperation indicates the remote service rejected an operation
	ErrRemoteOperation = errors.New("remote operation failed")

	// ErrRemoteUnavailable indicates no remote service is reachable
	ErrRemoteUnavailable = errors.New("remote service is unavailable")

	// ErrNotSynced indicates the playlist has no remote counterpart yet
	ErrNotSynced = errors.New("playlist is not synced")

	// ErrSyncCancelled indicates a sync was cancelled while in flight
	ErrSyncCancelled = errors.New("sync cancelled")

	// ErrInvalidEntity indicates a record failed boundary validation
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrReadOnly indicates the playlist was deleted remotely and is a snapshot
	ErrReadOnly = errors.New("playlist is read-only")

	// ErrRemoteIDImmutable indicates an attempt to replace an assigned remote id
	ErrRemoteIDImmutable = errors.New("remote id cannot change once assigned")
)

// NameConflictError reports the conflicting name. The sync stays paused
// until the caller renames or cancels.
type NameConflictError struct {
	PlaylistID string
	Name       string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("a remote playlist named %q already exists", e.Name)
}

func (e *NameConflictError) Unwrap() error { return ErrNameConflict }

// RemoteError wraps a failure returned by the remote service. Err is the
// transport error, if any; Message is what the remote reported.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRemoteOperation, e.Err}
	}
	return []error{ErrRemoteOperation}
}

// DurableWriteError wraps a storage failure
type DurableWriteError struct {
	Op  string
	Err error
}

func (e *DurableWriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DurableWriteError) Unwrap() []error { return []error{ErrDurableWrite, e.Err} }

// WriteError classifies err from a storage write. Not-found, validation and
// identity errors pass through untouched.
func WriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidEntity) || errors.Is(err, ErrRemoteIDImmutable) {
		return err
	}
	return &DurableWriteError{Op: op, Err: err}
}

// InvalidEntity wraps a validation failure with ErrInvalidEntity
func InvalidEntity(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidEntity, kind, err)
}
