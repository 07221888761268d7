package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcdole/reviewnotes/internal/cache"
	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/search"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds concurrent syncs in SyncPlaylists
const DefaultBatchSize = 3

// maxSimilarNames caps the suggestions carried by a name-conflict event
const maxSimilarNames = 5

// duplicateNamePattern recognises the remote's duplicate-name rejection.
// Matching on message text is a heuristic; unknown wordings fall through
// to an ordinary remote failure.
var duplicateNamePattern = regexp.MustCompile(
	`(?i)(duplicate|already exists|unique constraint|name (is )?(already )?(taken|in use))`)

func isDuplicateNameError(msg string) bool {
	return msg != "" && duplicateNamePattern.MatchString(msg)
}

// syncRun is one in-flight (or paused) sync of a playlist
type syncRun struct {
	cancelled atomic.Bool
	paused    bool
}

// SyncResult is the outcome of one playlist in a bulk sync
type SyncResult struct {
	PlaylistID string
	Err        error
}

// SyncEngine pushes local playlists to the remote service and reconciles
// remote changes back. At most one sync per playlist is active at a time;
// a sync paused on a name conflict stays active until resolved or cancelled.
type SyncEngine struct {
	repo      domain.Repository
	remote    domain.RemoteClient
	cache     *cache.PlaylistCache
	events    domain.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
	batchSize int

	mu     sync.Mutex
	active map[string]*syncRun
}

// EngineConfig wires a SyncEngine
type EngineConfig struct {
	Repo      domain.Repository
	Remote    domain.RemoteClient
	Cache     *cache.PlaylistCache
	Events    domain.EventEmitter
	Logger    *slog.Logger
	Now       func() time.Time
	BatchSize int
}

func NewSyncEngine(cfg EngineConfig) *SyncEngine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &SyncEngine{
		repo:      cfg.Repo,
		remote:    cfg.Remote,
		cache:     cfg.Cache,
		events:    cfg.Events,
		logger:    cfg.Logger,
		now:       cfg.Now,
		batchSize: cfg.BatchSize,
		active:    make(map[string]*syncRun),
	}
}

func (e *SyncEngine) emit(ev domain.Event) {
	if e.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.Emit(ev)
}

// acquire registers a run for id, or returns nil if one is already active.
func (e *SyncEngine) acquire(id string) *syncRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[id]; busy {
		return nil
	}
	run := &syncRun{}
	e.active[id] = run
	return run
}

// release drops run from the active set if it is still the registered one.
func (e *SyncEngine) release(id string, run *syncRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.active[id]; ok && cur == run {
		delete(e.active, id)
	}
}

func (e *SyncEngine) pause(run *syncRun) {
	e.mu.Lock()
	run.paused = true
	e.mu.Unlock()
}

func (e *SyncEngine) isPaused(run *syncRun) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return run.paused
}

// forget cancels and drops any active run for id.
func (e *SyncEngine) forget(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.active[id]
	if ok {
		run.cancelled.Store(true)
		delete(e.active, id)
	}
	return ok
}

// forgetPaused drops the run for id only if it is paused on a conflict.
func (e *SyncEngine) forgetPaused(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if run, ok := e.active[id]; ok && run.paused {
		delete(e.active, id)
	}
}

// running reports whether id has a sync in flight that is not paused.
func (e *SyncEngine) running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.active[id]
	return ok && !run.paused
}

// GetActiveSyncs returns the ids with a sync in flight or paused, sorted.
func (e *SyncEngine) GetActiveSyncs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *SyncEngine) setStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	return e.repo.UpdatePlaylist(ctx, id, domain.PlaylistUpdate{RemoteSyncStatus: &status})
}

// SyncPlaylist creates the remote counterpart of a playlist and pushes its
// versions. A call while another sync of the same id is active, or on an
// already synced playlist, returns nil without doing anything.
//
// A name conflict returns *domain.NameConflictError and leaves the sync
// paused until ResolveConflictAndRetry or CancelSyncDueToConflict.
func (e *SyncEngine) SyncPlaylist(ctx context.Context, id string) error {
	run := e.acquire(id)
	if run == nil {
		e.logger.Debug("sync already active", "playlistID", id)
		return nil
	}
	defer func() {
		if !e.isPaused(run) {
			e.release(id, run)
		}
	}()

	rec, err := e.repo.GetPlaylist(ctx, id)
	if err != nil {
		e.logger.Error("failed to load playlist for sync", "error", err, "playlistID", id)
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	if rec.DeletedRemotely {
		return fmt.Errorf("%w: %s", domain.ErrReadOnly, id)
	}
	if rec.IsSynced() {
		return nil
	}

	if err := e.setStatus(ctx, id, domain.SyncStatusSyncing); err != nil {
		e.logger.Error("failed to mark playlist syncing", "error", err, "playlistID", id)
		return err
	}
	e.cache.Invalidate(id)
	e.emit(domain.Event{Type: domain.EventSyncStarted, PlaylistID: id, PlaylistName: rec.Name})
	e.logger.Info("sync started", "playlistID", id, "name", rec.Name, "kind", rec.Kind)

	remoteID := rec.RemoteID
	if remoteID == "" {
		var (
			conflict *domain.NameConflictError
			names    []string
		)
		remoteID, names, err = e.createRemote(ctx, run, rec)
		if errors.As(err, &conflict) {
			return e.pauseOnConflict(ctx, run, rec, conflict, names)
		}
		if err != nil {
			return e.fail(ctx, run, rec, err)
		}
	} else {
		e.logger.Info("remote playlist already exists, pushing versions only", "playlistID", id, "remoteID", remoteID)
	}

	pushed, err := e.pushVersions(ctx, run, rec, remoteID)
	if err != nil {
		// Versions the remote did take are part of its membership now.
		if cerr := e.clearManual(ctx, id, pushed); cerr != nil {
			e.logger.Error("failed to clear manual flag", "error", cerr, "playlistID", id)
		}
		return e.fail(ctx, run, rec, err)
	}

	if run.cancelled.Load() {
		return domain.ErrSyncCancelled
	}

	if err := e.clearManual(ctx, id, pushed); err != nil {
		e.logger.Error("failed to clear manual flag", "error", err, "playlistID", id)
		return e.fail(ctx, run, rec, err)
	}

	now := e.now()
	local, synced := domain.LocalStatusSynced, domain.SyncStatusSynced
	err = e.repo.UpdatePlaylist(ctx, id, domain.PlaylistUpdate{
		RemoteID:         &remoteID,
		LocalStatus:      &local,
		RemoteSyncStatus: &synced,
		SyncedAt:         &now,
	})
	if err != nil {
		e.logger.Error("failed to record sync result", "error", err, "playlistID", id)
		return e.fail(ctx, run, rec, err)
	}

	e.cache.Invalidate(id)
	e.emit(domain.Event{
		Type:         domain.EventSyncCompleted,
		PlaylistID:   id,
		PlaylistName: rec.Name,
		RemoteID:     remoteID,
		VersionIDs:   pushed,
	})
	e.logger.Info("sync completed", "playlistID", id, "remoteID", remoteID, "versions", len(pushed))
	return nil
}

// createRemote runs the pre-flight name check and creates the remote
// playlist. It also returns the remote names seen during pre-flight. The new
// remote id is stored immediately so a later retry only re-pushes versions.
func (e *SyncEngine) createRemote(ctx context.Context, run *syncRun, rec *domain.PlaylistRecord) (string, []string, error) {
	names, err := e.preflight(ctx, rec)
	if err != nil {
		return "", names, err
	}
	if run.cancelled.Load() {
		return "", names, domain.ErrSyncCancelled
	}

	e.progress(rec, fmt.Sprintf("creating remote %s", rec.Kind))
	req := domain.RemoteCreateRequest{
		Name:         rec.Name,
		ProjectID:    rec.ProjectID,
		CategoryID:   rec.CategoryID,
		CategoryName: rec.CategoryName,
		Description:  rec.Description,
	}

	var (
		res domain.RemoteCreateResult
		op  string
	)
	switch rec.Kind {
	case domain.KindReviewSession:
		op = "create review session"
		res, err = e.remote.CreateReviewSession(ctx, req)
	default:
		op = "create list"
		res, err = e.remote.CreateList(ctx, req)
	}

	if err != nil || !res.Success || res.ID == "" {
		msg := res.Error
		if err != nil {
			msg = err.Error()
		}
		// Something else took the name between pre-flight and create.
		if isDuplicateNameError(msg) {
			return "", names, &domain.NameConflictError{PlaylistID: rec.ID, Name: rec.Name}
		}
		if msg == "" {
			msg = "remote returned no id"
		}
		return "", names, &domain.RemoteError{Op: op, Message: msg, Err: err}
	}

	// Identity is recorded even if the run was cancelled meanwhile; the
	// remote playlist exists now.
	if err := e.repo.UpdatePlaylist(ctx, rec.ID, domain.PlaylistUpdate{RemoteID: &res.ID}); err != nil {
		e.logger.Error("failed to store remote id", "error", err, "playlistID", rec.ID, "remoteID", res.ID)
		return "", names, err
	}
	e.logger.Info("created remote playlist", "playlistID", rec.ID, "remoteID", res.ID)

	if run.cancelled.Load() {
		return "", names, domain.ErrSyncCancelled
	}
	return res.ID, names, nil
}

// preflight looks for a same-named remote playlist or list in the project
// (case-sensitive). Lookup failures are logged and do not block creation.
func (e *SyncEngine) preflight(ctx context.Context, rec *domain.PlaylistRecord) ([]string, error) {
	if rec.ProjectID == "" {
		return nil, nil
	}
	e.progress(rec, "checking for name conflicts")

	var names []string
	for _, lookup := range []struct {
		what string
		fn   func(context.Context, string) ([]domain.RemotePlaylist, error)
	}{
		{"playlists", e.remote.GetPlaylists},
		{"lists", e.remote.GetLists},
	} {
		remotes, err := lookup.fn(ctx, rec.ProjectID)
		if err != nil {
			e.logger.Warn("pre-flight lookup failed", "error", err, "playlistID", rec.ID, "what", lookup.what)
			continue
		}
		for _, r := range remotes {
			names = append(names, r.Name)
		}
	}

	for _, n := range names {
		if n == rec.Name {
			return names, &domain.NameConflictError{PlaylistID: rec.ID, Name: rec.Name}
		}
	}
	return names, nil
}

// pauseOnConflict marks the playlist failed but keeps the run active so the
// caller can rename or cancel.
func (e *SyncEngine) pauseOnConflict(ctx context.Context, run *syncRun, rec *domain.PlaylistRecord, conflict *domain.NameConflictError, remoteNames []string) error {
	if run.cancelled.Load() {
		return domain.ErrSyncCancelled
	}
	e.pause(run)

	if err := e.setStatus(ctx, rec.ID, domain.SyncStatusFailed); err != nil {
		e.logger.Error("failed to mark playlist failed", "error", err, "playlistID", rec.ID)
	}
	e.cache.Invalidate(rec.ID)

	e.emit(domain.Event{
		Type:         domain.EventSyncNameConflict,
		PlaylistID:   rec.ID,
		PlaylistName: rec.Name,
		Message:      conflict.Error(),
		Err:          conflict,
		SimilarNames: search.SimilarNames(rec.Name, remoteNames, maxSimilarNames),
	})
	e.logger.Warn("sync paused on name conflict", "playlistID", rec.ID, "name", rec.Name)
	return conflict
}

// fail records a non-conflict failure. A cancelled run writes nothing.
func (e *SyncEngine) fail(ctx context.Context, run *syncRun, rec *domain.PlaylistRecord, cause error) error {
	if errors.Is(cause, domain.ErrSyncCancelled) || run.cancelled.Load() {
		return domain.ErrSyncCancelled
	}
	if err := e.setStatus(ctx, rec.ID, domain.SyncStatusFailed); err != nil {
		e.logger.Error("failed to mark playlist failed", "error", err, "playlistID", rec.ID)
	}
	e.cache.Invalidate(rec.ID)
	e.emit(domain.Event{
		Type:         domain.EventSyncFailed,
		PlaylistID:   rec.ID,
		PlaylistName: rec.Name,
		Message:      cause.Error(),
		Err:          cause,
	})
	e.logger.Error("sync failed", "error", cause, "playlistID", rec.ID)
	return cause
}

// clearManual drops the manually-added flag on versions the remote now holds.
func (e *SyncEngine) clearManual(ctx context.Context, playlistID string, versionIDs []string) error {
	notManual := false
	for _, vid := range versionIDs {
		err := e.repo.UpdateVersion(ctx, playlistID, vid, domain.VersionUpdate{ManuallyAdded: &notManual})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// pushVersions sends every live local version in one batch and returns the
// ids the remote accepted. If the remote took only some of them, the
// accepted ids are returned together with an error.
func (e *SyncEngine) pushVersions(ctx context.Context, run *syncRun, rec *domain.PlaylistRecord, remoteID string) ([]string, error) {
	versions, err := e.repo.GetPlaylistVersions(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	ids := make([]string, len(versions))
	for i, v := range versions {
		ids[i] = v.ID
	}
	if run.cancelled.Load() {
		return nil, domain.ErrSyncCancelled
	}

	e.progress(rec, fmt.Sprintf("pushing %d versions", len(ids)))
	res, err := e.remote.AddVersionsToPlaylist(ctx, remoteID, ids, rec.Kind)
	if err != nil {
		return nil, &domain.RemoteError{Op: "add versions", Message: err.Error(), Err: err}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "remote rejected versions"
		}
		return nil, &domain.RemoteError{Op: "add versions", Message: msg}
	}
	if len(res.SyncedVersionIDs) == 0 {
		return ids, nil
	}
	if len(res.SyncedVersionIDs) < len(ids) {
		return res.SyncedVersionIDs, &domain.RemoteError{
			Op:      "add versions",
			Message: fmt.Sprintf("%d of %d versions rejected", len(ids)-len(res.SyncedVersionIDs), len(ids)),
		}
	}
	return res.SyncedVersionIDs, nil
}

func (e *SyncEngine) progress(rec *domain.PlaylistRecord, msg string) {
	e.emit(domain.Event{Type: domain.EventSyncProgress, PlaylistID: rec.ID, PlaylistName: rec.Name, Message: msg})
}

// ResolveConflictAndRetry renames the playlist and runs the full sync again.
// While a sync of id is running (not paused on a conflict) it does nothing.
func (e *SyncEngine) ResolveConflictAndRetry(ctx context.Context, id, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return domain.InvalidEntity("playlist", errors.New("name cannot be blank"))
	}
	if e.running(id) {
		e.logger.Debug("sync already active, not resolving", "playlistID", id)
		return nil
	}
	if err := e.repo.UpdatePlaylist(ctx, id, domain.PlaylistUpdate{Name: &newName}); err != nil {
		e.logger.Error("failed to rename playlist", "error", err, "playlistID", id)
		return err
	}
	e.cache.Invalidate(id)
	e.emit(domain.Event{Type: domain.EventSyncConflictResolved, PlaylistID: id, PlaylistName: newName})
	e.logger.Info("name conflict resolved", "playlistID", id, "name", newName)

	e.forgetPaused(id)
	return e.SyncPlaylist(ctx, id)
}

// CancelSyncDueToConflict abandons a paused sync so the conflict can be
// settled in the remote service and the playlist refreshed later.
func (e *SyncEngine) CancelSyncDueToConflict(ctx context.Context, id string) error {
	return e.CancelSync(ctx, id)
}

// CancelSync drops the active run for id and resets its status. An
// in-flight remote call is not interrupted; the run stops at its next
// checkpoint without writing.
func (e *SyncEngine) CancelSync(ctx context.Context, id string) error {
	hadRun := e.forget(id)

	rec, err := e.repo.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	if rec.IsSynced() {
		return nil
	}
	if err := e.setStatus(ctx, id, domain.SyncStatusNotSynced); err != nil {
		e.logger.Error("failed to reset sync status", "error", err, "playlistID", id)
		return err
	}
	e.cache.Invalidate(id)
	e.emit(domain.Event{
		Type:         domain.EventPlaylistUpdated,
		PlaylistID:   id,
		PlaylistName: rec.Name,
		Message:      "sync cancelled",
	})
	e.logger.Info("sync cancelled", "playlistID", id, "wasActive", hadRun)
	return nil
}

// SyncPlaylists syncs ids in fixed-size concurrent batches. One failure
// never stops the others.
func (e *SyncEngine) SyncPlaylists(ctx context.Context, ids []string) []SyncResult {
	results := make([]SyncResult, len(ids))
	for start := 0; start < len(ids); start += e.batchSize {
		end := start + e.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = SyncResult{PlaylistID: ids[i], Err: e.SyncPlaylist(ctx, ids[i])}
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			for i := end; i < len(ids); i++ {
				results[i] = SyncResult{PlaylistID: ids[i], Err: ctx.Err()}
			}
			break
		}
	}
	return results
}
