package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// Config sizes a PlaylistCache
type Config struct {
	TTL           time.Duration
	Capacity      int
	SweepInterval time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Stats is a point-in-time view of the cache
type Stats struct {
	Playlists    []EntryStat `json:"playlists"`
	VersionLists []EntryStat `json:"versionLists"`
	Snapshots    []string    `json:"snapshots"`
}

// PlaylistCache keeps hydrated playlists and raw version lists in two
// independent TTL maps, plus snapshots of remotely deleted playlists that
// are pinned until Clear.
type PlaylistCache struct {
	playlists *TTLMap[domain.Playlist]
	versions  *TTLMap[[]domain.Version]

	snapMu    sync.RWMutex
	snapshots map[string]domain.Snapshot

	// gen counts invalidations per id so a fill racing a write is dropped
	genMu sync.Mutex
	gen   map[string]uint64

	sweepInterval time.Duration
	logger        *slog.Logger

	sweepMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// New creates a PlaylistCache. Zero config values take the defaults.
func New(cfg Config) *PlaylistCache {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PlaylistCache{
		playlists:     NewTTLMap[domain.Playlist](cfg.TTL, cfg.Capacity, cfg.Now),
		versions:      NewTTLMap[[]domain.Version](cfg.TTL, cfg.Capacity, cfg.Now),
		snapshots:     make(map[string]domain.Snapshot),
		gen:           make(map[string]uint64),
		sweepInterval: cfg.SweepInterval,
		logger:        cfg.Logger,
	}
}

func clonePlaylist(p domain.Playlist) *domain.Playlist {
	p.Versions = cloneVersions(p.Versions)
	if p.SyncedAt != nil {
		t := *p.SyncedAt
		p.SyncedAt = &t
	}
	return &p
}

func cloneVersions(vs []domain.Version) []domain.Version {
	if vs == nil {
		return nil
	}
	return append([]domain.Version(nil), vs...)
}

// GetPlaylist returns a copy of the cached playlist
func (c *PlaylistCache) GetPlaylist(id string) (*domain.Playlist, bool) {
	p, ok := c.playlists.Get(id)
	if !ok {
		return nil, false
	}
	return clonePlaylist(p), true
}

func (c *PlaylistCache) SetPlaylist(p *domain.Playlist) {
	if p == nil {
		return
	}
	c.playlists.Set(p.ID, *clonePlaylist(*p))
}

func (c *PlaylistCache) GetVersions(playlistID string) ([]domain.Version, bool) {
	vs, ok := c.versions.Get(playlistID)
	if !ok {
		return nil, false
	}
	return cloneVersions(vs), true
}

func (c *PlaylistCache) SetVersions(playlistID string, vs []domain.Version) {
	c.versions.Set(playlistID, cloneVersions(vs))
}

// Invalidate drops the playlist and version-list entries for id.
// Snapshots are not affected.
func (c *PlaylistCache) Invalidate(id string) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gen[id]++
	c.playlists.Delete(id)
	c.versions.Delete(id)
}

// Generation returns the invalidation count for id. Read it before loading
// from storage and pass it to Fill.
func (c *PlaylistCache) Generation(id string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gen[id]
}

// Fill caches a freshly hydrated playlist and its versions unless id was
// invalidated since gen was read. It reports whether the entry was stored.
func (c *PlaylistCache) Fill(p *domain.Playlist, gen uint64) bool {
	if p == nil {
		return false
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.gen[p.ID] != gen {
		return false
	}
	c.playlists.Set(p.ID, *clonePlaylist(*p))
	c.versions.Set(p.ID, cloneVersions(p.Versions))
	return true
}

// PreserveSnapshot pins a snapshot for the rest of the session.
func (c *PlaylistCache) PreserveSnapshot(s domain.Snapshot) {
	s.Versions = cloneVersions(s.Versions)
	c.snapMu.Lock()
	c.snapshots[s.PlaylistID] = s
	c.snapMu.Unlock()
}

func (c *PlaylistCache) Snapshot(id string) (domain.Snapshot, bool) {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	s, ok := c.snapshots[id]
	s.Versions = cloneVersions(s.Versions)
	return s, ok
}

// DropSnapshot removes a pinned snapshot, used when the playlist itself is deleted.
func (c *PlaylistCache) DropSnapshot(id string) {
	c.snapMu.Lock()
	delete(c.snapshots, id)
	c.snapMu.Unlock()
}

// Sweep evicts expired entries from both maps.
func (c *PlaylistCache) Sweep() int {
	n := c.playlists.Sweep() + c.versions.Sweep()
	if n > 0 {
		c.logger.Debug("cache sweep evicted entries", "count", n)
	}
	return n
}

// Clear empties everything, snapshots included.
func (c *PlaylistCache) Clear() {
	c.playlists.Clear()
	c.versions.Clear()
	c.snapMu.Lock()
	c.snapshots = make(map[string]domain.Snapshot)
	c.snapMu.Unlock()
}

func (c *PlaylistCache) Stats() Stats {
	c.snapMu.RLock()
	snaps := make([]string, 0, len(c.snapshots))
	for id := range c.snapshots {
		snaps = append(snaps, id)
	}
	c.snapMu.RUnlock()
	sort.Strings(snaps)

	return Stats{
		Playlists:    c.playlists.Stats(),
		VersionLists: c.versions.Stats(),
		Snapshots:    snaps,
	}
}

// Start runs the background sweep until Stop. Calling Start twice is a no-op.
func (c *PlaylistCache) Start() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.sweepLoop(c.stop, c.done)
}

func (c *PlaylistCache) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}

// Stop halts the background sweep and waits for it to exit.
func (c *PlaylistCache) Stop() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}
