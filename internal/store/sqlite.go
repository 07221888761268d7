package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/reviewnotes/internal/domain"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS playlists (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	kind               TEXT NOT NULL,
	local_status       TEXT NOT NULL,
	remote_sync_status TEXT NOT NULL,
	remote_id          TEXT NOT NULL DEFAULT '',
	project_id         TEXT NOT NULL DEFAULT '',
	category_id        TEXT NOT NULL DEFAULT '',
	category_name      TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	deleted_remotely   INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	synced_at          INTEGER
);

CREATE INDEX IF NOT EXISTS idx_playlists_lookup ON playlists(project_id, kind, name);

CREATE TABLE IF NOT EXISTS versions (
	playlist_id    TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	id             TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	version_number INTEGER NOT NULL DEFAULT 0,
	draft_content  TEXT NOT NULL DEFAULT '',
	label_id       TEXT NOT NULL DEFAULT '',
	note_status    TEXT NOT NULL,
	manually_added INTEGER NOT NULL DEFAULT 0,
	is_removed     INTEGER NOT NULL DEFAULT 0,
	added_at       INTEGER NOT NULL,
	last_modified  INTEGER NOT NULL,
	PRIMARY KEY (playlist_id, id)
);

CREATE INDEX IF NOT EXISTS idx_versions_removed ON versions(is_removed, last_modified);

CREATE TABLE IF NOT EXISTS attachments (
	version_id  TEXT NOT NULL,
	playlist_id TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	mime_type   TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	preview_ref TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (version_id, playlist_id, id),
	FOREIGN KEY (playlist_id, version_id) REFERENCES versions(playlist_id, id) ON DELETE CASCADE
);
`

const playlistColumns = `id, name, kind, local_status, remote_sync_status, remote_id, project_id,
	category_id, category_name, description, deleted_remotely, created_at, updated_at, synced_at`

const versionColumns = `playlist_id, id, name, version_number, draft_content, label_id, note_status,
	manually_added, is_removed, added_at, last_modified`

// SQLiteRepository implements domain.Repository on an embedded SQLite file.
type SQLiteRepository struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (or creates) the SQLite database at path and applies the schema.
func OpenSQLite(path string, opts ...Option) (*SQLiteRepository, error) {
	o := buildOptions(opts)

	// Pragmas go in the DSN so every pooled connection gets them.
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(wal)")
	params.Set("_txlock", "immediate")
	conn, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{conn: conn, now: o.now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	r.conn = nil
	return nil
}

// withTx runs fn inside one transaction and classifies the failure.
func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return domain.WriteError(op, err)
	}
	return domain.WriteError(op, tx.Commit())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func scanPlaylist(s rowScanner) (*domain.PlaylistRecord, error) {
	var (
		p                domain.PlaylistRecord
		deleted          bool
		created, updated int64
		synced           sql.NullInt64
	)
	err := s.Scan(&p.ID, &p.Name, &p.Kind, &p.LocalStatus, &p.RemoteSyncStatus, &p.RemoteID,
		&p.ProjectID, &p.CategoryID, &p.CategoryName, &p.Description, &deleted,
		&created, &updated, &synced)
	if err != nil {
		return nil, err
	}
	p.DeletedRemotely = deleted
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	if synced.Valid {
		t := fromUnix(synced.Int64)
		p.SyncedAt = &t
	}
	return &p, nil
}

func scanVersion(s rowScanner) (*domain.VersionRecord, error) {
	var (
		v               domain.VersionRecord
		added, modified int64
	)
	err := s.Scan(&v.PlaylistID, &v.ID, &v.Name, &v.VersionNumber, &v.DraftContent, &v.LabelID,
		&v.NoteStatus, &v.ManuallyAdded, &v.IsRemoved, &added, &modified)
	if err != nil {
		return nil, err
	}
	v.AddedAt = fromUnix(added)
	v.LastModified = fromUnix(modified)
	return &v, nil
}

func playlistArgs(p *domain.PlaylistRecord) []any {
	var synced any
	if p.SyncedAt != nil {
		synced = toUnix(*p.SyncedAt)
	}
	return []any{p.ID, p.Name, string(p.Kind), string(p.LocalStatus), string(p.RemoteSyncStatus),
		p.RemoteID, p.ProjectID, p.CategoryID, p.CategoryName, p.Description, p.DeletedRemotely,
		toUnix(p.CreatedAt), toUnix(p.UpdatedAt), synced}
}

func versionArgs(v *domain.VersionRecord) []any {
	return []any{v.PlaylistID, v.ID, v.Name, v.VersionNumber, v.DraftContent, v.LabelID,
		string(v.NoteStatus), v.ManuallyAdded, v.IsRemoved, toUnix(v.AddedAt), toUnix(v.LastModified)}
}

// === Playlists ===

func (r *SQLiteRepository) CreatePlaylist(ctx context.Context, rec *domain.PlaylistRecord) error {
	if err := rec.Validate(); err != nil {
		return domain.InvalidEntity("playlist", err)
	}
	return r.withTx(ctx, "create playlist", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playlists (`+playlistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			playlistArgs(rec)...)
		return err
	})
}

func (r *SQLiteRepository) GetPlaylist(ctx context.Context, id string) (*domain.PlaylistRecord, error) {
	row := r.conn.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *SQLiteRepository) UpdatePlaylist(ctx context.Context, id string, update domain.PlaylistUpdate) error {
	return r.withTx(ctx, "update playlist", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id)
		p, err := scanPlaylist(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
		}
		if err != nil {
			return err
		}
		if err := update.Apply(p, r.now()); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return domain.InvalidEntity("playlist", err)
		}
		args := playlistArgs(p)
		_, err = tx.ExecContext(ctx, `UPDATE playlists SET name = ?, kind = ?, local_status = ?,
			remote_sync_status = ?, remote_id = ?, project_id = ?, category_id = ?, category_name = ?,
			description = ?, deleted_remotely = ?, created_at = ?, updated_at = ?, synced_at = ?
			WHERE id = ?`, append(args[1:], id)...)
		return err
	})
}

// DeletePlaylist removes dependents explicitly as well as via ON DELETE
// CASCADE so the cascade does not depend on the foreign_keys pragma.
func (r *SQLiteRepository) DeletePlaylist(ctx context.Context, id string) error {
	return r.withTx(ctx, "delete playlist", func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM attachments WHERE playlist_id = ?`,
			`DELETE FROM versions WHERE playlist_id = ?`,
			`DELETE FROM playlists WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) queryPlaylists(ctx context.Context, where string, args ...any) ([]*domain.PlaylistRecord, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PlaylistRecord
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortPlaylists(out)
	return out, nil
}

func (r *SQLiteRepository) ListPlaylists(ctx context.Context) ([]*domain.PlaylistRecord, error) {
	return r.queryPlaylists(ctx, "")
}

func (r *SQLiteRepository) GetPlaylistsByProject(ctx context.Context, projectID string) ([]*domain.PlaylistRecord, error) {
	return r.queryPlaylists(ctx, `WHERE project_id = ?`, projectID)
}

func (r *SQLiteRepository) FindByNameProjectAndType(ctx context.Context, name, projectID string, kind domain.PlaylistKind) (*domain.PlaylistRecord, error) {
	matches, err := r.queryPlaylists(ctx, `WHERE name = ? AND project_id = ? AND kind = ?`, name, projectID, string(kind))
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// === Versions ===

func (r *SQLiteRepository) GetPlaylistVersions(ctx context.Context, playlistID string) ([]*domain.VersionRecord, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE playlist_id = ? AND is_removed = 0`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.VersionRecord
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortVersions(out)
	return out, nil
}

func (r *SQLiteRepository) GetVersion(ctx context.Context, playlistID, versionID string) (*domain.VersionRecord, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE playlist_id = ? AND id = ?`, playlistID, versionID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) UpdateVersion(ctx context.Context, playlistID, versionID string, update domain.VersionUpdate) error {
	return r.withTx(ctx, "update version", func(tx *sql.Tx) error {
		return r.updateVersionTx(ctx, tx, playlistID, versionID, update)
	})
}

func (r *SQLiteRepository) updateVersionTx(ctx context.Context, tx *sql.Tx, playlistID, versionID string, update domain.VersionUpdate) error {
	row := tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE playlist_id = ? AND id = ?`, playlistID, versionID)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", domain.ErrVersionNotFound, playlistID, versionID)
	}
	if err != nil {
		return err
	}
	update.Apply(v, r.now())
	return r.writeVersion(ctx, tx, v)
}

func (r *SQLiteRepository) writeVersion(ctx context.Context, tx *sql.Tx, v *domain.VersionRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (playlist_id, id) DO UPDATE SET
			name = excluded.name,
			version_number = excluded.version_number,
			draft_content = excluded.draft_content,
			label_id = excluded.label_id,
			note_status = excluded.note_status,
			manually_added = excluded.manually_added,
			is_removed = excluded.is_removed,
			added_at = excluded.added_at,
			last_modified = excluded.last_modified`, versionArgs(v)...)
	return err
}

func (r *SQLiteRepository) RemoveVersionFromPlaylist(ctx context.Context, playlistID, versionID string) error {
	removed := true
	return r.withTx(ctx, "remove version", func(tx *sql.Tx) error {
		return r.updateVersionTx(ctx, tx, playlistID, versionID, domain.VersionUpdate{IsRemoved: &removed})
	})
}

func (r *SQLiteRepository) BulkAddVersions(ctx context.Context, playlistID string, versions []domain.VersionRecord) error {
	return r.withTx(ctx, "add versions", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists WHERE id = ?`, playlistID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, playlistID)
		}

		now := r.now()
		for _, incoming := range versions {
			incoming.PlaylistID = playlistID
			row := tx.QueryRowContext(ctx,
				`SELECT `+versionColumns+` FROM versions WHERE playlist_id = ? AND id = ?`, playlistID, incoming.ID)
			existing, err := scanVersion(row)
			if errors.Is(err, sql.ErrNoRows) {
				existing = nil
			} else if err != nil {
				return err
			}

			merged := domain.MergeVersion(existing, incoming, now)
			if err := merged.Validate(); err != nil {
				return domain.InvalidEntity("version", err)
			}
			if err := r.writeVersion(ctx, tx, &merged); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) PurgeRemovedVersions(ctx context.Context, playlistID string, cutoff time.Time) (int, error) {
	var purged int64
	err := r.withTx(ctx, "purge versions", func(tx *sql.Tx) error {
		where := `is_removed = 1 AND last_modified < ?`
		args := []any{toUnix(cutoff)}
		if playlistID != "" {
			where += ` AND playlist_id = ?`
			args = append(args, playlistID)
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE (playlist_id, version_id) IN
			(SELECT playlist_id, id FROM versions WHERE `+where+`)`, args...)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE `+where, args...)
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	return int(purged), err
}

// === Attachments ===

func (r *SQLiteRepository) SaveAttachment(ctx context.Context, rec *domain.AttachmentRecord) error {
	if err := rec.Validate(); err != nil {
		return domain.InvalidEntity("attachment", err)
	}
	return r.withTx(ctx, "save attachment", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions WHERE playlist_id = ? AND id = ?`,
			rec.PlaylistID, rec.VersionID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s/%s", domain.ErrVersionNotFound, rec.PlaylistID, rec.VersionID)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO attachments
			(version_id, playlist_id, id, name, mime_type, size, preview_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (version_id, playlist_id, id) DO UPDATE SET
				name = excluded.name,
				mime_type = excluded.mime_type,
				size = excluded.size,
				preview_ref = excluded.preview_ref`,
			rec.VersionID, rec.PlaylistID, rec.ID, rec.Name, rec.MimeType, rec.Size, rec.PreviewRef,
			toUnix(rec.CreatedAt))
		return err
	})
}

func (r *SQLiteRepository) GetAttachments(ctx context.Context, playlistID, versionID string) ([]*domain.AttachmentRecord, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT id, playlist_id, version_id, name, mime_type, size,
		preview_ref, created_at FROM attachments WHERE playlist_id = ? AND version_id = ? ORDER BY id`,
		playlistID, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AttachmentRecord
	for rows.Next() {
		var (
			a       domain.AttachmentRecord
			created int64
		)
		if err := rows.Scan(&a.ID, &a.PlaylistID, &a.VersionID, &a.Name, &a.MimeType, &a.Size,
			&a.PreviewRef, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromUnix(created)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteAttachment(ctx context.Context, playlistID, versionID, attachmentID string) error {
	return r.withTx(ctx, "delete attachment", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE playlist_id = ? AND version_id = ? AND id = ?`,
			playlistID, versionID, attachmentID)
		return err
	})
}
