// Package remote holds RemoteClient implementations that ship with the
// store. The real asset-tracking client lives elsewhere and is injected
// by the host application.
package remote

import (
	"context"
	"fmt"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// Disconnected is the client used when no remote service is configured.
// Every call fails with domain.ErrRemoteUnavailable.
type Disconnected struct{}

func NewDisconnected() *Disconnected { return &Disconnected{} }

func unavailable(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrRemoteUnavailable)
}

func (Disconnected) GetPlaylists(ctx context.Context, projectID string) ([]domain.RemotePlaylist, error) {
	return nil, unavailable("get playlists")
}

func (Disconnected) GetLists(ctx context.Context, projectID string) ([]domain.RemotePlaylist, error) {
	return nil, unavailable("get lists")
}

func (Disconnected) GetPlaylistVersions(ctx context.Context, remoteID string) ([]domain.RemoteVersion, error) {
	return nil, unavailable("get playlist versions")
}

func (Disconnected) CreateReviewSession(ctx context.Context, req domain.RemoteCreateRequest) (domain.RemoteCreateResult, error) {
	return domain.RemoteCreateResult{}, unavailable("create review session")
}

func (Disconnected) CreateList(ctx context.Context, req domain.RemoteCreateRequest) (domain.RemoteCreateResult, error) {
	return domain.RemoteCreateResult{}, unavailable("create list")
}

func (Disconnected) AddVersionsToPlaylist(ctx context.Context, remoteID string, versionIDs []string, kind domain.PlaylistKind) (domain.RemoteAddResult, error) {
	return domain.RemoteAddResult{}, unavailable("add versions")
}

var _ domain.RemoteClient = Disconnected{}
