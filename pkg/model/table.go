package model

import "math"

// Table is an immutable, ordered set of survey records. It is safe to share
// between goroutines once constructed.
type Table struct {
	records []Record
	genres  []string
	index   map[string]int
}

// NewTable copies records into a new table and derives the genre universe in
// first-seen order.
func NewTable(records []Record) *Table {
	t := &Table{
		records: make([]Record, len(records)),
		index:   make(map[string]int),
	}
	copy(t.records, records)
	for _, r := range t.records {
		if _, ok := t.index[r.Genre]; ok {
			continue
		}
		t.index[r.Genre] = len(t.genres)
		t.genres = append(t.genres, r.Genre)
	}
	return t
}

// Empty returns a table with no records.
func Empty() *Table {
	return NewTable(nil)
}

// Len returns the number of records. A nil table has length zero.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// At returns the i-th record.
func (t *Table) At(i int) Record {
	return t.records[i]
}

// Records returns a copy of the records.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Each calls fn for every record in table order.
func (t *Table) Each(fn func(i int, r Record)) {
	if t == nil {
		return
	}
	for i, r := range t.records {
		fn(i, r)
	}
}

// Genres returns the genre universe in first-seen order.
func (t *Table) Genres() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.genres))
	copy(out, t.genres)
	return out
}

// HasGenre reports whether genre belongs to the universe.
func (t *Table) HasGenre(genre string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[genre]
	return ok
}

// Select returns the indices of records matching f, in table order.
func (t *Table) Select(f GenreFilter) []int {
	var out []int
	t.Each(func(i int, r Record) {
		if f.Match(r.Genre) {
			out = append(out, i)
		}
	})
	return out
}

// MaxHours returns the largest finite listening-hours value, or 0.
func (t *Table) MaxHours() float64 {
	max := 0.0
	t.Each(func(_ int, r Record) {
		if !math.IsNaN(r.Hours) && r.Hours > max {
			max = r.Hours
		}
	})
	return max
}
