package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/reviewnotes/internal/cache"
	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/events"
	"github.com/mmcdole/reviewnotes/internal/remote"
	"github.com/mmcdole/reviewnotes/internal/search"
)

// DefaultPreservationWindow is how long soft-removed versions are kept
const DefaultPreservationWindow = 7 * 24 * time.Hour

// Service is the single entry point for playlist state. It composes the
// repository, cache, draft manager and sync engine, converts records to
// caller-facing playlists, and emits lifecycle events.
//
// Writes go to the repository first and then invalidate the cache; reads
// are served read-through from the cache.
type Service struct {
	repo   domain.Repository
	cache  *cache.PlaylistCache
	bus    *events.Bus
	drafts *DraftManager
	sync   *SyncEngine
	logger *slog.Logger

	now          func() time.Time
	newID        func() string
	preservation time.Duration
}

type options struct {
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	cache        *cache.PlaylistCache
	bus          *events.Bus
	preservation time.Duration
	batchSize    int
}

// Option configures a Service
type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }
func WithIDGenerator(fn func() string) Option { return func(o *options) { o.newID = fn } }
func WithCache(c *cache.PlaylistCache) Option { return func(o *options) { o.cache = c } }
func WithEventBus(b *events.Bus) Option { return func(o *options) { o.bus = b } }
func WithPreservationWindow(d time.Duration) Option { return func(o *options) { o.preservation = d } }
func WithBatchSize(n int) Option { return func(o *options) { o.batchSize = n } }

// NewService wires a Service. A nil remote client means no remote service
// is reachable and every sync or refresh fails with ErrRemoteUnavailable.
func NewService(repo domain.Repository, client domain.RemoteClient, opts ...Option) *Service {
	o := options{
		now:          time.Now,
		newID:        uuid.NewString,
		preservation: DefaultPreservationWindow,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.cache == nil {
		o.cache = cache.New(cache.Config{Now: o.now, Logger: o.logger})
	}
	if o.bus == nil {
		o.bus = events.NewBus(o.logger)
	}
	if o.preservation <= 0 {
		o.preservation = DefaultPreservationWindow
	}
	if client == nil {
		client = remote.NewDisconnected()
	}

	return &Service{
		repo:   repo,
		cache:  o.cache,
		bus:    o.bus,
		drafts: NewDraftManager(repo, o.logger),
		sync: NewSyncEngine(EngineConfig{
			Repo:      repo,
			Remote:    client,
			Cache:     o.cache,
			Events:    o.bus,
			Logger:    o.logger,
			Now:       o.now,
			BatchSize: o.batchSize,
		}),
		logger:       o.logger,
		now:          o.now,
		newID:        o.newID,
		preservation: o.preservation,
	}
}

// Init starts the cache sweep and purges soft-removed versions past the
// preservation window. A failed purge is logged, not fatal.
func (s *Service) Init(ctx context.Context) error {
	s.cache.Start()
	if _, err := s.PurgeRemovedVersions(ctx); err != nil {
		s.logger.Warn("startup purge failed", "error", err)
	}
	return nil
}

// Close stops the sweep and drops all cached state. The repository is
// owned by the caller.
func (s *Service) Close() error {
	s.cache.Stop()
	s.cache.Clear()
	return nil
}

func (s *Service) emit(e domain.Event) {
	if e.At.IsZero() {
		e.At = s.now()
	}
	s.bus.Emit(e)
}

// Subscribe registers handler for one event type
func (s *Service) Subscribe(t domain.EventType, handler domain.EventHandler) func() {
	return s.bus.Subscribe(t, handler)
}

// SubscribeAll registers handler for every event
func (s *Service) SubscribeAll(handler domain.EventHandler) func() {
	return s.bus.SubscribeAll(handler)
}

// === Playlists ===

// CreatePlaylist stores a new playlist with a freshly minted id. If the
// project already has a playlist of the same name and kind, that one is
// returned instead. A request carrying RemoteID imports an existing remote
// playlist as already synced.
func (s *Service) CreatePlaylist(ctx context.Context, req domain.CreatePlaylistRequest) (*domain.Playlist, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.InvalidEntity("playlist", err)
	}

	existing, err := s.repo.FindByNameProjectAndType(ctx, req.Name, req.ProjectID, req.Kind)
	if err != nil {
		s.logger.Error("failed to check for existing playlist", "error", err, "name", req.Name)
		return nil, err
	}
	if existing != nil {
		s.logger.Info("playlist already exists locally", "playlistID", existing.ID, "name", req.Name)
		return s.GetPlaylist(ctx, existing.ID)
	}

	now := s.now()
	rec := &domain.PlaylistRecord{
		ID:               s.newID(),
		Name:             req.Name,
		Kind:             req.Kind,
		LocalStatus:      domain.LocalStatusDraft,
		RemoteSyncStatus: domain.SyncStatusNotSynced,
		ProjectID:        req.ProjectID,
		CategoryID:       req.CategoryID,
		CategoryName:     req.CategoryName,
		Description:      req.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.RemoteID != "" {
		rec.RemoteID = req.RemoteID
		rec.LocalStatus = domain.LocalStatusSynced
		rec.RemoteSyncStatus = domain.SyncStatusSynced
		rec.SyncedAt = &now
	}

	versions, err := recordsFromInputs(rec.ID, req.Versions, s.newID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreatePlaylist(ctx, rec); err != nil {
		s.logger.Error("failed to create playlist", "error", err, "name", req.Name)
		return nil, err
	}
	if len(versions) > 0 {
		if err := s.repo.BulkAddVersions(ctx, rec.ID, versions); err != nil {
			s.logger.Error("failed to add initial versions", "error", err, "playlistID", rec.ID)
			return nil, err
		}
	}

	s.emit(domain.Event{Type: domain.EventPlaylistCreated, PlaylistID: rec.ID, PlaylistName: rec.Name})
	s.logger.Info("created playlist", "playlistID", rec.ID, "name", rec.Name, "kind", rec.Kind)
	return s.GetPlaylist(ctx, rec.ID)
}

// GetPlaylist returns the hydrated playlist or nil. A playlist deleted
// remotely is served from its pinned snapshot.
func (s *Service) GetPlaylist(ctx context.Context, id string) (*domain.Playlist, error) {
	if p, ok := s.cache.GetPlaylist(id); ok {
		s.logger.Debug("cache hit", "playlistID", id)
		return p, nil
	}

	gen := s.cache.Generation(id)
	rec, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		s.logger.Error("failed to load playlist", "error", err, "playlistID", id)
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	if n, err := s.repo.PurgeRemovedVersions(ctx, id, s.now().Add(-s.preservation)); err != nil {
		s.logger.Warn("opportunistic purge failed", "error", err, "playlistID", id)
	} else if n > 0 {
		s.logger.Debug("purged removed versions", "playlistID", id, "count", n)
	}

	versions, err := s.repo.GetPlaylistVersions(ctx, id)
	if err != nil {
		s.logger.Error("failed to load versions", "error", err, "playlistID", id)
		return nil, err
	}

	p, err := toPlaylist(rec, versions)
	if err != nil {
		return nil, err
	}
	if rec.DeletedRemotely {
		if snap, ok := s.cache.Snapshot(id); ok {
			p.Versions = snap.Versions
		}
	}

	if !s.cache.Fill(p, gen) {
		s.logger.Debug("playlist changed while loading, not cached", "playlistID", id)
	}
	return p, nil
}

// ListPlaylists returns every playlist, oldest first.
func (s *Service) ListPlaylists(ctx context.Context) ([]*domain.Playlist, error) {
	recs, err := s.repo.ListPlaylists(ctx)
	if err != nil {
		s.logger.Error("failed to list playlists", "error", err)
		return nil, err
	}
	return s.hydrate(ctx, recs)
}

func (s *Service) GetPlaylistsByProject(ctx context.Context, projectID string) ([]*domain.Playlist, error) {
	recs, err := s.repo.GetPlaylistsByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to list project playlists", "error", err, "projectID", projectID)
		return nil, err
	}
	return s.hydrate(ctx, recs)
}

func (s *Service) hydrate(ctx context.Context, recs []*domain.PlaylistRecord) ([]*domain.Playlist, error) {
	out := make([]*domain.Playlist, 0, len(recs))
	for _, r := range recs {
		p, err := s.GetPlaylist(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchPlaylists fuzzy-matches query against playlist names.
func (s *Service) SearchPlaylists(ctx context.Context, query string) ([]search.Result, error) {
	all, err := s.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	return search.Playlists(query, all), nil
}

// writable loads a playlist record and rejects snapshots of remotely
// deleted playlists.
func (s *Service) writable(ctx context.Context, id string) (*domain.PlaylistRecord, error) {
	rec, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	if rec.DeletedRemotely {
		return nil, fmt.Errorf("%w: %s", domain.ErrReadOnly, id)
	}
	return rec, nil
}

// UpdatePlaylist applies a caller edit to the descriptive fields.
func (s *Service) UpdatePlaylist(ctx context.Context, id string, edit domain.PlaylistEdit) error {
	if err := edit.Validate(); err != nil {
		return domain.InvalidEntity("playlist", err)
	}
	rec, err := s.writable(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePlaylist(ctx, id, edit.Update()); err != nil {
		s.logger.Error("failed to update playlist", "error", err, "playlistID", id)
		return err
	}
	s.cache.Invalidate(id)

	name := rec.Name
	if edit.Name != nil {
		name = *edit.Name
	}
	s.emit(domain.Event{Type: domain.EventPlaylistUpdated, PlaylistID: id, PlaylistName: name})
	s.logger.Info("updated playlist", "playlistID", id)
	return nil
}

// DeletePlaylist removes the playlist with its versions and attachments.
// Snapshots may be deleted too.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	rec, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	if err := s.repo.DeletePlaylist(ctx, id); err != nil {
		s.logger.Error("failed to delete playlist", "error", err, "playlistID", id)
		return err
	}
	s.sync.forget(id)
	s.cache.Invalidate(id)
	s.cache.DropSnapshot(id)
	s.emit(domain.Event{Type: domain.EventPlaylistDeleted, PlaylistID: id, PlaylistName: rec.Name})
	s.logger.Info("deleted playlist", "playlistID", id)
	return nil
}

// === Versions ===

// AddVersionsToPlaylist upserts versions. Re-adding a removed version
// within the preservation window restores its draft.
func (s *Service) AddVersionsToPlaylist(ctx context.Context, id string, versions []domain.VersionInput) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	recs, err := recordsFromInputs(id, versions, s.newID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if err := s.repo.BulkAddVersions(ctx, id, recs); err != nil {
		s.logger.Error("failed to add versions", "error", err, "playlistID", id)
		return err
	}
	s.cache.Invalidate(id)

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	s.emit(domain.Event{Type: domain.EventVersionsAdded, PlaylistID: id, VersionIDs: ids})
	s.logger.Info("added versions", "playlistID", id, "count", len(ids))
	return nil
}

// RemoveVersionFromPlaylist soft-removes a version.
func (s *Service) RemoveVersionFromPlaylist(ctx context.Context, id, versionID string) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	if err := s.repo.RemoveVersionFromPlaylist(ctx, id, versionID); err != nil {
		s.logger.Error("failed to remove version", "error", err, "playlistID", id, "versionID", versionID)
		return err
	}
	s.cache.Invalidate(id)
	s.emit(domain.Event{Type: domain.EventVersionRemoved, PlaylistID: id, VersionIDs: []string{versionID}})
	s.logger.Info("removed version", "playlistID", id, "versionID", versionID)
	return nil
}

// PurgeRemovedVersions hard-deletes soft-removed versions older than the
// preservation window across all playlists.
func (s *Service) PurgeRemovedVersions(ctx context.Context) (int, error) {
	n, err := s.repo.PurgeRemovedVersions(ctx, "", s.now().Add(-s.preservation))
	if err != nil {
		s.logger.Error("failed to purge removed versions", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged removed versions", "count", n)
	}
	return n, nil
}

// === Drafts ===

func (s *Service) SaveDraft(ctx context.Context, id, versionID, content string, labelID *string) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	if err := s.drafts.SaveDraft(ctx, id, versionID, content, labelID); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	s.emit(domain.Event{Type: domain.EventDraftSaved, PlaylistID: id, VersionIDs: []string{versionID}})
	return nil
}

func (s *Service) ClearDraft(ctx context.Context, id, versionID string) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	if err := s.drafts.ClearDraft(ctx, id, versionID); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	s.emit(domain.Event{Type: domain.EventDraftCleared, PlaylistID: id, VersionIDs: []string{versionID}})
	return nil
}

func (s *Service) PublishNote(ctx context.Context, id, versionID string) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	if err := s.drafts.PublishNote(ctx, id, versionID); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	s.emit(domain.Event{Type: domain.EventNotePublished, PlaylistID: id, VersionIDs: []string{versionID}})
	return nil
}

func (s *Service) GetDraftContent(ctx context.Context, id, versionID string) (*domain.Draft, error) {
	return s.drafts.GetDraftContent(ctx, id, versionID)
}

// === Attachments ===

// AddAttachment records attachment metadata for a version.
func (s *Service) AddAttachment(ctx context.Context, id, versionID string, in domain.AttachmentInput) (*domain.AttachmentRecord, error) {
	if _, err := s.writable(ctx, id); err != nil {
		return nil, err
	}
	rec := &domain.AttachmentRecord{
		ID:         s.newID(),
		PlaylistID: id,
		VersionID:  versionID,
		Name:       in.Name,
		MimeType:   in.MimeType,
		Size:       in.Size,
		PreviewRef: in.PreviewRef,
		CreatedAt:  s.now(),
	}
	if err := s.repo.SaveAttachment(ctx, rec); err != nil {
		s.logger.Error("failed to save attachment", "error", err, "playlistID", id, "versionID", versionID)
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetAttachments(ctx context.Context, id, versionID string) ([]*domain.AttachmentRecord, error) {
	return s.repo.GetAttachments(ctx, id, versionID)
}

func (s *Service) RemoveAttachment(ctx context.Context, id, versionID, attachmentID string) error {
	if err := s.repo.DeleteAttachment(ctx, id, versionID, attachmentID); err != nil {
		s.logger.Error("failed to delete attachment", "error", err, "playlistID", id, "attachmentID", attachmentID)
		return err
	}
	return nil
}

// === Sync ===

// SyncPlaylist pushes the playlist to the remote service. See
// SyncEngine.SyncPlaylist.
func (s *Service) SyncPlaylist(ctx context.Context, id string) error {
	return s.sync.SyncPlaylist(ctx, id)
}

func (s *Service) SyncPlaylists(ctx context.Context, ids []string) []SyncResult {
	return s.sync.SyncPlaylists(ctx, ids)
}

func (s *Service) ResolveConflictAndRetry(ctx context.Context, id, newName string) error {
	if _, err := s.writable(ctx, id); err != nil {
		return err
	}
	return s.sync.ResolveConflictAndRetry(ctx, id, newName)
}

func (s *Service) CancelSyncDueToConflict(ctx context.Context, id string) error {
	return s.sync.CancelSyncDueToConflict(ctx, id)
}

func (s *Service) CancelSync(ctx context.Context, id string) error {
	return s.sync.CancelSync(ctx, id)
}

func (s *Service) GetActiveSyncs() []string {
	return s.sync.GetActiveSyncs()
}

func (s *Service) RefreshPlaylist(ctx context.Context, id string) (*RefreshResult, error) {
	return s.sync.RefreshPlaylist(ctx, id)
}

func (s *Service) ApplyPlaylistRefresh(ctx context.Context, id string, fresh, added, removed []domain.Version) error {
	if rec, err := s.repo.GetPlaylist(ctx, id); err != nil {
		return err
	} else if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	return s.sync.ApplyPlaylistRefresh(ctx, id, fresh, added, removed)
}

// === Introspection ===

func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Snapshot returns the pinned copy of a remotely deleted playlist.
func (s *Service) Snapshot(id string) (domain.Snapshot, bool) {
	return s.cache.Snapshot(id)
}

// IsNotFound reports whether err means a playlist or version is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
