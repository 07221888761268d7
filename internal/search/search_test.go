package search

import (
	"testing"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playlists(names ...string) []*domain.Playlist {
	out := make([]*domain.Playlist, len(names))
	for i, n := range names {
		out[i] = &domain.Playlist{ID: n, Name: n}
	}
	return out
}

func TestPlaylistsFuzzyMatch(t *testing.T) {
	pls := playlists("Dailies 0312", "Lighting Review", "Comp Dailies", "Editorial")

	results := Playlists("dailies", pls)
	require.Len(t, results, 2)
	names := []string{results[0].Playlist.Name, results[1].Playlist.Name}
	assert.ElementsMatch(t, []string{"Dailies 0312", "Comp Dailies"}, names)
	assert.NotEmpty(t, results[0].MatchedIndexes)

	results = Playlists("LGTRV", pls)
	require.Len(t, results, 1)
	assert.Equal(t, "Lighting Review", results[0].Playlist.Name)
}

func TestPlaylistsEmptyQuery(t *testing.T) {
	assert.Nil(t, Playlists("  ", playlists("a")))
	assert.Nil(t, Playlists("a", nil))
}

func TestSimilarNames(t *testing.T) {
	candidates := []string{"Review1", "review1-final", "Review 2", "Reveiw1", "Editorial", "Review1"}

	got := SimilarNames("Review1", candidates, 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "Review1", got[0])
	assert.Contains(t, got, "review1-final")
	assert.Contains(t, got, "Reveiw1")
	assert.NotContains(t, got, "Editorial")

	seen := map[string]int{}
	for _, n := range got {
		seen[n]++
	}
	assert.Equal(t, 1, seen["Review1"], "duplicates collapse")
}

func TestSimilarNamesLimit(t *testing.T) {
	got := SimilarNames("shot", []string{"shot_010", "shot_020", "shot_030"}, 2)
	assert.Len(t, got, 2)
	assert.Nil(t, SimilarNames("", []string{"x"}, 0))
}
