package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type rankedName struct {
	name  string
	score int
}

// SimilarNames returns up to limit candidates that look like name, best
// first. limit <= 0 means no limit.
func SimilarNames(name string, candidates []string, limit int) []string {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return nil
	}

	seen := make(map[string]bool)
	var ranked []rankedName
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if score, ok := similarity(query, strings.ToLower(c)); ok {
			ranked = append(ranked, rankedName{name: c, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score == ranked[j].score {
			return ranked[i].name < ranked[j].name
		}
		return ranked[i].score < ranked[j].score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}

// similarity scores candidate against query. Lower is closer.
func similarity(query, candidate string) (int, bool) {
	switch {
	case candidate == query:
		return 0, true
	case strings.HasPrefix(candidate, query), strings.HasPrefix(query, candidate):
		return 10, true
	case strings.Contains(candidate, query), strings.Contains(query, candidate):
		return 50, true
	}

	if d := fuzzy.RankMatchNormalizedFold(query, candidate); d >= 0 {
		return 100 + d, true
	}

	// Typo tolerance scales with length
	distance := fuzzy.LevenshteinDistance(query, candidate)
	maxTypos := len([]rune(query)) / 3
	if maxTypos < 1 {
		maxTypos = 1
	}
	if distance <= maxTypos {
		return 200 + distance, true
	}
	return 0, false
}
