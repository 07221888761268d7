package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/reviewnotes/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketPlaylists   = []byte("playlists")
	bucketVersions    = []byte("versions")
	bucketAttachments = []byte("attachments")
)

// Keys encode ancestry (pl:X:v:Y:a:Z) so a playlist cascade is a prefix delete.
func versionPrefix(playlistID string) string { return "pl:" + playlistID + ":v:" }

func versionKey(playlistID, versionID string) []byte {
	return []byte(versionPrefix(playlistID) + versionID)
}

func attachmentPrefix(playlistID, versionID string) string {
	return versionPrefix(playlistID) + versionID + ":a:"
}

func attachmentKey(playlistID, versionID, attachmentID string) []byte {
	return []byte(attachmentPrefix(playlistID, versionID) + attachmentID)
}

// BoltRepository implements domain.Repository using BoltDB.
// Values are JSON-encoded records.
type BoltRepository struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the BoltDB file at path.
func OpenBolt(path string, opts ...Option) (*BoltRepository, error) {
	o := buildOptions(opts)

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPlaylists, bucketVersions, bucketAttachments} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db, now: o.now}, nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

// === Generic helpers ===

func getJSON(b *bolt.Bucket, key []byte, dest interface{}) (bool, error) {
	v := b.Get(key)
	if v == nil {
		return false, nil
	}
	if err := json.Unmarshal(v, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(b *bolt.Bucket, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// deletePrefix removes every key in b starting with prefix and returns the count.
func deletePrefix(b *bolt.Bucket, prefix string) (int, error) {
	var keys [][]byte
	c := b.Cursor()
	p := []byte(prefix)
	for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (r *BoltRepository) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(fn)
}

func (r *BoltRepository) update(ctx context.Context, op string, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return domain.WriteError(op, r.db.Update(fn))
}

// === Playlists ===

func (r *BoltRepository) CreatePlaylist(ctx context.Context, rec *domain.PlaylistRecord) error {
	if err := rec.Validate(); err != nil {
		return domain.InvalidEntity("playlist", err)
	}
	return r.update(ctx, "create playlist", func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlaylists)
		if b.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("playlist %s already exists", rec.ID)
		}
		return putJSON(b, []byte(rec.ID), rec)
	})
}

func (r *BoltRepository) GetPlaylist(ctx context.Context, id string) (*domain.PlaylistRecord, error) {
	var rec *domain.PlaylistRecord
	err := r.view(ctx, func(tx *bolt.Tx) error {
		var p domain.PlaylistRecord
		ok, err := getJSON(tx.Bucket(bucketPlaylists), []byte(id), &p)
		if ok {
			rec = &p
		}
		return err
	})
	return rec, err
}

func (r *BoltRepository) UpdatePlaylist(ctx context.Context, id string, update domain.PlaylistUpdate) error {
	return r.update(ctx, "update playlist", func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlaylists)
		var rec domain.PlaylistRecord
		ok, err := getJSON(b, []byte(id), &rec)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
		}
		if err := update.Apply(&rec, r.now()); err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return domain.InvalidEntity("playlist", err)
		}
		return putJSON(b, []byte(id), rec)
	})
}

// DeletePlaylist removes the playlist, its versions and their attachments
// in a single transaction.
func (r *BoltRepository) DeletePlaylist(ctx context.Context, id string) error {
	return r.update(ctx, "delete playlist", func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketPlaylists).Delete([]byte(id)); err != nil {
			return err
		}
		if _, err := deletePrefix(tx.Bucket(bucketVersions), versionPrefix(id)); err != nil {
			return err
		}
		_, err := deletePrefix(tx.Bucket(bucketAttachments), versionPrefix(id))
		return err
	})
}

func (r *BoltRepository) ListPlaylists(ctx context.Context) ([]*domain.PlaylistRecord, error) {
	return r.filterPlaylists(ctx, func(*domain.PlaylistRecord) bool { return true })
}

func (r *BoltRepository) GetPlaylistsByProject(ctx context.Context, projectID string) ([]*domain.PlaylistRecord, error) {
	return r.filterPlaylists(ctx, func(p *domain.PlaylistRecord) bool {
		return p.ProjectID == projectID
	})
}

func (r *BoltRepository) FindByNameProjectAndType(ctx context.Context, name, projectID string, kind domain.PlaylistKind) (*domain.PlaylistRecord, error) {
	matches, err := r.filterPlaylists(ctx, func(p *domain.PlaylistRecord) bool {
		return p.Name == name && p.ProjectID == projectID && p.Kind == kind
	})
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

func (r *BoltRepository) filterPlaylists(ctx context.Context, keep func(*domain.PlaylistRecord) bool) ([]*domain.PlaylistRecord, error) {
	var out []*domain.PlaylistRecord
	err := r.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlaylists).ForEach(func(k, v []byte) error {
			var p domain.PlaylistRecord
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode playlist %s: %w", k, err)
			}
			if keep(&p) {
				out = append(out, &p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortPlaylists(out)
	return out, nil
}

// === Versions ===

func (r *BoltRepository) GetPlaylistVersions(ctx context.Context, playlistID string) ([]*domain.VersionRecord, error) {
	var out []*domain.VersionRecord
	err := r.view(ctx, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketVersions).Cursor()
		prefix := versionPrefix(playlistID)
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var rec domain.VersionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode version %s: %w", k, err)
			}
			if !rec.IsRemoved {
				out = append(out, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortVersions(out)
	return out, nil
}

func (r *BoltRepository) GetVersion(ctx context.Context, playlistID, versionID string) (*domain.VersionRecord, error) {
	var rec *domain.VersionRecord
	err := r.view(ctx, func(tx *bolt.Tx) error {
		var v domain.VersionRecord
		ok, err := getJSON(tx.Bucket(bucketVersions), versionKey(playlistID, versionID), &v)
		if ok {
			rec = &v
		}
		return err
	})
	return rec, err
}

func (r *BoltRepository) UpdateVersion(ctx context.Context, playlistID, versionID string, update domain.VersionUpdate) error {
	return r.update(ctx, "update version", func(tx *bolt.Tx) error {
		return r.updateVersionTx(tx, playlistID, versionID, update)
	})
}

func (r *BoltRepository) updateVersionTx(tx *bolt.Tx, playlistID, versionID string, update domain.VersionUpdate) error {
	b := tx.Bucket(bucketVersions)
	key := versionKey(playlistID, versionID)
	var rec domain.VersionRecord
	ok, err := getJSON(b, key, &rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrVersionNotFound, playlistID, versionID)
	}
	update.Apply(&rec, r.now())
	return putJSON(b, key, rec)
}

func (r *BoltRepository) RemoveVersionFromPlaylist(ctx context.Context, playlistID, versionID string) error {
	removed := true
	return r.update(ctx, "remove version", func(tx *bolt.Tx) error {
		return r.updateVersionTx(tx, playlistID, versionID, domain.VersionUpdate{IsRemoved: &removed})
	})
}

func (r *BoltRepository) BulkAddVersions(ctx context.Context, playlistID string, versions []domain.VersionRecord) error {
	return r.update(ctx, "add versions", func(tx *bolt.Tx) error {
		if tx.Bucket(bucketPlaylists).Get([]byte(playlistID)) == nil {
			return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, playlistID)
		}
		b := tx.Bucket(bucketVersions)
		now := r.now()
		for _, incoming := range versions {
			incoming.PlaylistID = playlistID
			key := versionKey(playlistID, incoming.ID)

			var existing *domain.VersionRecord
			var cur domain.VersionRecord
			ok, err := getJSON(b, key, &cur)
			if err != nil {
				return err
			}
			if ok {
				existing = &cur
			}

			merged := domain.MergeVersion(existing, incoming, now)
			if err := merged.Validate(); err != nil {
				return domain.InvalidEntity("version", err)
			}
			if err := putJSON(b, key, merged); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BoltRepository) PurgeRemovedVersions(ctx context.Context, playlistID string, cutoff time.Time) (int, error) {
	purged := 0
	err := r.update(ctx, "purge versions", func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVersions)
		prefix := "pl:"
		if playlistID != "" {
			prefix = versionPrefix(playlistID)
		}

		var expired []domain.VersionRecord
		c := b.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var rec domain.VersionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode version %s: %w", k, err)
			}
			if rec.IsRemoved && rec.LastModified.Before(cutoff) {
				expired = append(expired, rec)
			}
		}

		attachments := tx.Bucket(bucketAttachments)
		for _, rec := range expired {
			if err := b.Delete(versionKey(rec.PlaylistID, rec.ID)); err != nil {
				return err
			}
			if _, err := deletePrefix(attachments, attachmentPrefix(rec.PlaylistID, rec.ID)); err != nil {
				return err
			}
		}
		purged = len(expired)
		return nil
	})
	return purged, err
}

// === Attachments ===

func (r *BoltRepository) SaveAttachment(ctx context.Context, rec *domain.AttachmentRecord) error {
	if err := rec.Validate(); err != nil {
		return domain.InvalidEntity("attachment", err)
	}
	return r.update(ctx, "save attachment", func(tx *bolt.Tx) error {
		if tx.Bucket(bucketVersions).Get(versionKey(rec.PlaylistID, rec.VersionID)) == nil {
			return fmt.Errorf("%w: %s/%s", domain.ErrVersionNotFound, rec.PlaylistID, rec.VersionID)
		}
		return putJSON(tx.Bucket(bucketAttachments), attachmentKey(rec.PlaylistID, rec.VersionID, rec.ID), rec)
	})
}

func (r *BoltRepository) GetAttachments(ctx context.Context, playlistID, versionID string) ([]*domain.AttachmentRecord, error) {
	var out []*domain.AttachmentRecord
	err := r.view(ctx, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAttachments).Cursor()
		prefix := attachmentPrefix(playlistID, versionID)
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var rec domain.AttachmentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode attachment %s: %w", k, err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

func (r *BoltRepository) DeleteAttachment(ctx context.Context, playlistID, versionID, attachmentID string) error {
	return r.update(ctx, "delete attachment", func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttachments).Delete(attachmentKey(playlistID, versionID, attachmentID))
	})
}
