package playlist

import (
	"errors"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// Conversion between durable records and the caller-facing shapes happens
// only here. Anything that fails the entity guards is rejected.

func toPlaylist(rec *domain.PlaylistRecord, versions []*domain.VersionRecord) (*domain.Playlist, error) {
	if rec == nil {
		return nil, domain.InvalidEntity("playlist", errors.New("nil record"))
	}
	if !domain.IsPlaylistEntity(rec) {
		return nil, domain.InvalidEntity("playlist", rec.Validate())
	}

	p := &domain.Playlist{
		ID:               rec.ID,
		Name:             rec.Name,
		Kind:             rec.Kind,
		LocalStatus:      rec.LocalStatus,
		RemoteSyncStatus: rec.RemoteSyncStatus,
		RemoteID:         rec.RemoteID,
		ProjectID:        rec.ProjectID,
		CategoryID:       rec.CategoryID,
		CategoryName:     rec.CategoryName,
		Description:      rec.Description,
		DeletedRemotely:  rec.DeletedRemotely,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		Versions:         make([]domain.Version, 0, len(versions)),
	}
	if rec.SyncedAt != nil {
		t := *rec.SyncedAt
		p.SyncedAt = &t
	}

	for _, v := range versions {
		ver, err := toVersion(v)
		if err != nil {
			return nil, err
		}
		p.Versions = append(p.Versions, ver)
	}
	return p, nil
}

func toVersion(rec *domain.VersionRecord) (domain.Version, error) {
	if rec == nil {
		return domain.Version{}, domain.InvalidEntity("version", errors.New("nil record"))
	}
	if !domain.IsVersionEntity(rec) {
		return domain.Version{}, domain.InvalidEntity("version", rec.Validate())
	}
	return domain.Version{
		ID:            rec.ID,
		PlaylistID:    rec.PlaylistID,
		Name:          rec.Name,
		VersionNumber: rec.VersionNumber,
		DraftContent:  rec.DraftContent,
		LabelID:       rec.LabelID,
		NoteStatus:    rec.NoteStatus,
		ManuallyAdded: rec.ManuallyAdded,
		AddedAt:       rec.AddedAt,
		LastModified:  rec.LastModified,
	}, nil
}

func toVersions(recs []*domain.VersionRecord) ([]domain.Version, error) {
	out := make([]domain.Version, 0, len(recs))
	for _, r := range recs {
		v, err := toVersion(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// recordsFromInputs builds version records for a playlist. Manually added
// versions without an id get one from newID; remote-origin versions must
// carry the remote id.
func recordsFromInputs(playlistID string, inputs []domain.VersionInput, newID func() string) ([]domain.VersionRecord, error) {
	out := make([]domain.VersionRecord, 0, len(inputs))
	for _, in := range inputs {
		id := in.ID
		if id == "" {
			if !in.ManuallyAdded {
				return nil, domain.InvalidEntity("version", errors.New("remote-origin version requires an id"))
			}
			id = newID()
		}
		out = append(out, domain.VersionRecord{
			ID:            id,
			PlaylistID:    playlistID,
			Name:          in.Name,
			VersionNumber: in.VersionNumber,
			ManuallyAdded: in.ManuallyAdded,
		})
	}
	return out, nil
}

func fromRemote(playlistID string, rv domain.RemoteVersion) domain.Version {
	return domain.Version{
		ID:            rv.ID,
		PlaylistID:    playlistID,
		Name:          rv.Name,
		VersionNumber: rv.VersionNumber,
		NoteStatus:    domain.NoteStatusEmpty,
	}
}

func versionIDs(vs []domain.Version) []string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = v.ID
	}
	return ids
}
