package model

import "strings"

// AllLabel is the selector option that disables genre filtering.
const AllLabel = "All"

// GenreFilter restricts a view to a subset of the genre universe. The zero
// value matches every genre.
type GenreFilter struct {
	restrict bool
	genres   []string
}

// AllGenres returns the identity filter.
func AllGenres() GenreFilter {
	return GenreFilter{}
}

// OnlyGenres returns a filter matching exactly the given genres. With no
// arguments it matches nothing.
func OnlyGenres(genres ...string) GenreFilter {
	f := GenreFilter{restrict: true}
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		if seen[g] {
			continue
		}
		seen[g] = true
		f.genres = append(f.genres, g)
	}
	return f
}

// ParseSelection converts selector values into a filter. Any "All" value
// selects everything, matching the select-box semantics.
func ParseSelection(values []string) GenreFilter {
	for _, v := range values {
		if v == AllLabel {
			return AllGenres()
		}
	}
	return OnlyGenres(values...)
}

// IsAll reports whether the filter is the identity.
func (f GenreFilter) IsAll() bool {
	return !f.restrict
}

// Match reports whether genre passes the filter.
func (f GenreFilter) Match(genre string) bool {
	if !f.restrict {
		return true
	}
	for _, g := range f.genres {
		if g == genre {
			return true
		}
	}
	return false
}

// Genres returns the selected genres; nil for the identity filter.
func (f GenreFilter) Genres() []string {
	if !f.restrict {
		return nil
	}
	out := make([]string, len(f.genres))
	copy(out, f.genres)
	return out
}

// Values returns the selector values representing the filter.
func (f GenreFilter) Values() []string {
	if !f.restrict {
		return []string{AllLabel}
	}
	return f.Genres()
}

// Equal reports whether two filters select the same genres.
func (f GenreFilter) Equal(o GenreFilter) bool {
	if f.restrict != o.restrict || len(f.genres) != len(o.genres) {
		return false
	}
	for _, g := range f.genres {
		if !o.Match(g) {
			return false
		}
	}
	return true
}

func (f GenreFilter) String() string {
	if !f.restrict {
		return AllLabel
	}
	return strings.Join(f.genres, ", ")
}
