package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// RefreshResult is the diff between local and remote membership.
//
// FreshVersions is the full remote membership; pass it back together with
// AddedVersions and RemovedVersions to ApplyPlaylistRefresh.
type RefreshResult struct {
	Success         bool
	AddedCount      int
	RemovedCount    int
	AddedVersions   []domain.Version
	RemovedVersions []domain.Version
	FreshVersions   []domain.Version

	// DeletedRemotely is set when the remote playlist appears to be gone
	DeletedRemotely bool

	// Applied is set when the diff was applied during the refresh
	Applied bool

	// Renamed holds the remote name when it replaced the local one
	Renamed string
}

// RefreshPlaylist pulls remote membership and diffs it against local state.
// The diff is applied immediately only when the playlist has manually added
// versions; otherwise it is reported for ApplyPlaylistRefresh.
func (e *SyncEngine) RefreshPlaylist(ctx context.Context, id string) (*RefreshResult, error) {
	rec, err := e.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	if rec.RemoteID == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotSynced, id)
	}

	remoteVersions, err := e.remote.GetPlaylistVersions(ctx, rec.RemoteID)
	if err != nil {
		e.logger.Error("failed to fetch remote versions", "error", err, "playlistID", id, "remoteID", rec.RemoteID)
		return &RefreshResult{}, &domain.RemoteError{Op: "get playlist versions", Message: err.Error(), Err: err}
	}

	localRecs, err := e.repo.GetPlaylistVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	local, err := toVersions(localRecs)
	if err != nil {
		return nil, err
	}

	res := diffVersions(id, local, remoteVersions)
	res.Success = true

	hasManual, hadRemoteOrigin := false, false
	for _, v := range local {
		if v.ManuallyAdded {
			hasManual = true
		} else {
			hadRemoteOrigin = true
		}
	}

	if len(remoteVersions) == 0 && hadRemoteOrigin {
		if err := e.markDeletedRemotely(ctx, rec, local); err != nil {
			return nil, err
		}
		res.DeletedRemotely = true
	} else if name, ok := e.remoteName(ctx, rec); ok && name != rec.Name {
		if err := e.repo.UpdatePlaylist(ctx, id, domain.PlaylistUpdate{Name: &name}); err != nil {
			e.logger.Error("failed to apply remote name", "error", err, "playlistID", id)
			return nil, err
		}
		e.cache.Invalidate(id)
		e.emit(domain.Event{
			Type:         domain.EventPlaylistUpdated,
			PlaylistID:   id,
			PlaylistName: name,
			Message:      fmt.Sprintf("renamed from %q on the remote", rec.Name),
		})
		e.logger.Info("picked up remote rename", "playlistID", id, "from", rec.Name, "to", name)
		res.Renamed = name
	}

	if hasManual && (res.AddedCount > 0 || res.RemovedCount > 0) {
		if err := e.ApplyPlaylistRefresh(ctx, id, res.FreshVersions, res.AddedVersions, res.RemovedVersions); err != nil {
			return nil, err
		}
		res.Applied = true
	}

	e.logger.Debug("refreshed playlist", "playlistID", id,
		"added", res.AddedCount, "removed", res.RemovedCount, "applied", res.Applied)
	return res, nil
}

// diffVersions computes added (remote, not local) and removed (local,
// remote-origin, not remote). Manually added versions are never removed.
func diffVersions(playlistID string, local []domain.Version, remote []domain.RemoteVersion) *RefreshResult {
	localIDs := make(map[string]bool, len(local))
	for _, v := range local {
		localIDs[v.ID] = true
	}
	remoteIDs := make(map[string]bool, len(remote))

	res := &RefreshResult{FreshVersions: make([]domain.Version, 0, len(remote))}
	for _, rv := range remote {
		if remoteIDs[rv.ID] {
			continue
		}
		remoteIDs[rv.ID] = true
		v := fromRemote(playlistID, rv)
		res.FreshVersions = append(res.FreshVersions, v)
		if !localIDs[rv.ID] {
			res.AddedVersions = append(res.AddedVersions, v)
		}
	}
	for _, v := range local {
		if !v.ManuallyAdded && !remoteIDs[v.ID] {
			res.RemovedVersions = append(res.RemovedVersions, v)
		}
	}
	res.AddedCount = len(res.AddedVersions)
	res.RemovedCount = len(res.RemovedVersions)
	return res
}

// markDeletedRemotely flags the playlist and pins its current versions in
// the cache. The local record is kept.
func (e *SyncEngine) markDeletedRemotely(ctx context.Context, rec *domain.PlaylistRecord, local []domain.Version) error {
	e.cache.PreserveSnapshot(domain.Snapshot{
		PlaylistID: rec.ID,
		Name:       rec.Name,
		Versions:   local,
		TakenAt:    e.now(),
	})

	deleted := true
	if err := e.repo.UpdatePlaylist(ctx, rec.ID, domain.PlaylistUpdate{DeletedRemotely: &deleted}); err != nil {
		e.logger.Error("failed to flag playlist deleted remotely", "error", err, "playlistID", rec.ID)
		return err
	}
	e.cache.Invalidate(rec.ID)
	e.emit(domain.Event{
		Type:         domain.EventPlaylistUpdated,
		PlaylistID:   rec.ID,
		PlaylistName: rec.Name,
		RemoteID:     rec.RemoteID,
		Message:      "remote playlist was deleted; keeping a read-only copy",
	})
	e.logger.Warn("remote playlist appears deleted", "playlistID", rec.ID, "remoteID", rec.RemoteID)
	return nil
}

// remoteName looks up the remote entity by remote id. Lookup failures are
// logged and reported as not found.
func (e *SyncEngine) remoteName(ctx context.Context, rec *domain.PlaylistRecord) (string, bool) {
	if rec.ProjectID == "" {
		return "", false
	}
	lookup := e.remote.GetLists
	if rec.Kind == domain.KindReviewSession {
		lookup = e.remote.GetPlaylists
	}
	remotes, err := lookup(ctx, rec.ProjectID)
	if err != nil {
		e.logger.Warn("failed to look up remote name", "error", err, "playlistID", rec.ID)
		return "", false
	}
	for _, r := range remotes {
		if r.ID == rec.RemoteID && r.Name != "" {
			return r.Name, true
		}
	}
	return "", false
}

// ApplyPlaylistRefresh upserts fresh and added versions as remote-origin and
// soft-removes the removed ones. Drafts on re-added versions survive.
func (e *SyncEngine) ApplyPlaylistRefresh(ctx context.Context, id string, fresh, added, removed []domain.Version) error {
	seen := make(map[string]bool, len(fresh)+len(added))
	var upserts []domain.VersionRecord
	for _, v := range append(append([]domain.Version(nil), fresh...), added...) {
		if v.ID == "" || seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		upserts = append(upserts, domain.VersionRecord{
			ID:            v.ID,
			PlaylistID:    id,
			Name:          v.Name,
			VersionNumber: v.VersionNumber,
		})
	}

	if len(upserts) > 0 {
		if err := e.repo.BulkAddVersions(ctx, id, upserts); err != nil {
			e.logger.Error("failed to apply added versions", "error", err, "playlistID", id)
			return err
		}
	}

	var removedIDs []string
	for _, v := range removed {
		if seen[v.ID] {
			continue
		}
		err := e.repo.RemoveVersionFromPlaylist(ctx, id, v.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			e.logger.Error("failed to apply removed version", "error", err, "playlistID", id, "versionID", v.ID)
			return err
		}
		removedIDs = append(removedIDs, v.ID)
	}

	e.cache.Invalidate(id)
	if len(added) > 0 {
		e.emit(domain.Event{Type: domain.EventVersionsAdded, PlaylistID: id, VersionIDs: versionIDs(added)})
	}
	if len(removedIDs) > 0 {
		e.emit(domain.Event{Type: domain.EventVersionRemoved, PlaylistID: id, VersionIDs: removedIDs})
	}
	e.logger.Info("applied refresh", "playlistID", id, "upserted", len(upserts), "removed", len(removedIDs))
	return nil
}
