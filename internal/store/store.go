// Package store provides durable storage for playlists, versions and
// attachment metadata. Two backends implement domain.Repository: BoltDB
// (default) and SQLite. Neither caches, retries, or talks to the network.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// Driver names a storage backend
type Driver string

const (
	DriverBolt   Driver = "bolt"
	DriverSQLite Driver = "sqlite"
)

// Option configures a repository
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for UpdatedAt/LastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open opens the repository for driver at dir, creating dir if needed.
func Open(driver Driver, dir string, opts ...Option) (domain.Repository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	switch driver {
	case DriverBolt, "":
		return OpenBolt(filepath.Join(dir, "reviewnotes.db"), opts...)
	case DriverSQLite:
		return OpenSQLite(filepath.Join(dir, "reviewnotes.sqlite"), opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func sortPlaylists(recs []*domain.PlaylistRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

func sortVersions(recs []*domain.VersionRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].AddedAt.Equal(recs[j].AddedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].AddedAt.Before(recs[j].AddedAt)
	})
}
