package model

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// SuggestGenre returns the table genre closest to name by edit distance,
// ignoring case. Nothing is suggested when the best candidate needs more
// edits than half its own length.
func (t *Table) SuggestGenre(name string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	best, bestDist := "", -1
	for _, g := range t.Genres() {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(g))
		if bestDist < 0 || d < bestDist {
			best, bestDist = g, d
		}
	}
	if bestDist < 0 || bestDist > len(best)/2 {
		return "", false
	}
	return best, true
}

// ResolveGenre maps a user-typed genre onto the table's spelling. Exact and
// case-insensitive matches resolve; anything else reports a suggestion.
func (t *Table) ResolveGenre(name string) (genre, suggestion string, ok bool) {
	if name == AllLabel || t.HasGenre(name) {
		return name, "", true
	}
	for _, g := range t.Genres() {
		if strings.EqualFold(g, strings.TrimSpace(name)) {
			return g, "", true
		}
	}
	s, _ := t.SuggestGenre(name)
	return "", s, false
}
