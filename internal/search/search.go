// Package search ranks playlists by name. Playlists does interactive fuzzy
// filtering; SimilarNames finds near-duplicates of a name among remote
// playlists so a naming conflict can suggest what already exists.
package search

import (
	"sort"
	"strings"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Result is a matched playlist with highlight positions
type Result struct {
	Playlist       *domain.Playlist
	MatchedIndexes []int // Character positions in the name that matched
	Score          int   // Higher is better
}

// Index implements sahilm/fuzzy.Source over playlist names
type Index struct {
	playlists  []*domain.Playlist
	lowerNames []string
}

// NewIndex pre-computes lowercase names for matching.
func NewIndex(playlists []*domain.Playlist) *Index {
	idx := &Index{
		playlists:  playlists,
		lowerNames: make([]string, len(playlists)),
	}
	for i, p := range playlists {
		idx.lowerNames[i] = strings.ToLower(p.Name)
	}
	return idx
}

// String returns the lowercase name at index i (implements fuzzy.Source)
func (idx *Index) String(i int) string { return idx.lowerNames[i] }

// Len returns the number of playlists (implements fuzzy.Source)
func (idx *Index) Len() int { return len(idx.playlists) }

// Find matches query against the index, best first. An empty query
// matches nothing.
func (idx *Index) Find(query string) []Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, idx)
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Playlist:       idx.playlists[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	// fuzzy already sorts by score; keep ties in creation order
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Playlists is shorthand for NewIndex(playlists).Find(query).
func Playlists(query string, playlists []*domain.Playlist) []Result {
	return NewIndex(playlists).Find(query)
}
