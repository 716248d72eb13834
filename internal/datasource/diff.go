package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// SourceDiff describes how two loaded survey sources disagree.
type SourceDiff struct {
	SourceA string
	SourceB string
	// MissingInA lists genres present in B but not in A.
	MissingInA []string
	// MissingInB lists genres present in A but not in B.
	MissingInB []string
	// CountMismatch lists genres whose record counts differ.
	CountMismatch []GenreDifference
	CountA        int
	CountB        int
	HashA         string
	HashB         string
}

// GenreDifference is a per-genre record count mismatch.
type GenreDifference struct {
	Genre  string `json:"genre"`
	CountA int    `json:"count_a"`
	CountB int    `json:"count_b"`
}

// HasInconsistencies reports whether the sources differ at all. Two tables
// with the same genre counts but different cells still differ by hash.
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.CountMismatch) > 0 ||
		d.CountA != d.CountB || d.HashA != d.HashB
}

// Summary returns a human-readable summary of the differences.
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d records each)", d.CountA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&b, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	writeList := func(genres []string, in, notIn string) {
		if len(genres) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d genres in %s but not %s\n", len(genres), in, notIn)
		if len(genres) <= 5 {
			for _, g := range genres {
				fmt.Fprintf(&b, "    - %s\n", g)
			}
		}
	}
	writeList(d.MissingInA, d.SourceB, d.SourceA)
	writeList(d.MissingInB, d.SourceA, d.SourceB)
	if len(d.CountMismatch) > 0 {
		fmt.Fprintf(&b, "  - %d genres with different record counts\n", len(d.CountMismatch))
		if len(d.CountMismatch) <= 5 {
			for _, m := range d.CountMismatch {
				fmt.Fprintf(&b, "    - %s: %d vs %d\n", m.Genre, m.CountA, m.CountB)
			}
		}
	}
	if len(d.MissingInA) == 0 && len(d.MissingInB) == 0 && len(d.CountMismatch) == 0 && d.HashA != d.HashB {
		b.WriteString("  - Same genre counts but record contents differ\n")
	}
	return b.String()
}

// DiffOptions configures DetectInconsistencies.
type DiffOptions struct {
	// MaxDifferences limits each difference list (0 = unlimited).
	MaxDifferences int
}

// DefaultDiffOptions returns the default diff options.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

func genreCounts(t *model.Table) map[string]int {
	counts := make(map[string]int)
	t.Each(func(_ int, r model.Record) {
		counts[r.Genre]++
	})
	return counts
}

// DetectInconsistencies compares two tables genre by genre.
func DetectInconsistencies(a, b *model.Table, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{
		SourceA: sourceA,
		SourceB: sourceB,
		CountA:  a.Len(),
		CountB:  b.Len(),
		HashA:   Fingerprint(a),
		HashB:   Fingerprint(b),
	}
	room := func(n int) bool {
		return opts.MaxDifferences == 0 || n < opts.MaxDifferences
	}

	countsA := genreCounts(a)
	countsB := genreCounts(b)
	for _, g := range a.Genres() {
		if _, ok := countsB[g]; !ok && room(len(diff.MissingInB)) {
			diff.MissingInB = append(diff.MissingInB, g)
		}
	}
	for _, g := range b.Genres() {
		ca, ok := countsA[g]
		if !ok {
			if room(len(diff.MissingInA)) {
				diff.MissingInA = append(diff.MissingInA, g)
			}
			continue
		}
		if cb := countsB[g]; ca != cb && room(len(diff.CountMismatch)) {
			diff.CountMismatch = append(diff.CountMismatch, GenreDifference{Genre: g, CountA: ca, CountB: cb})
		}
	}
	sort.Slice(diff.CountMismatch, func(i, j int) bool {
		return diff.CountMismatch[i].Genre < diff.CountMismatch[j].Genre
	})
	return diff
}

// CompareSources loads and compares two data sources.
func CompareSources(sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	a, err := LoadFromSource(sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	b, err := LoadFromSource(sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}
	diff := DetectInconsistencies(a, b, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// CheckAllSourcesConsistent compares every pair of valid sources and returns
// the pairs that disagree.
func CheckAllSourcesConsistent(sources []DataSource, opts DiffOptions) ([]SourceDiff, error) {
	var diffs []SourceDiff
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(sources[i], sources[j], opts)
			if err != nil {
				debug.Log("datasource: compare %s vs %s: %v", sources[i].Path, sources[j].Path, err)
				continue
			}
			if diff.HasInconsistencies() {
				diffs = append(diffs, *diff)
			}
		}
	}
	return diffs, nil
}

// InconsistencyReport aggregates every pairwise difference.
type InconsistencyReport struct {
	Sources              []DataSource
	Diffs                []SourceDiff
	TotalInconsistencies int
	// HasCriticalInconsistencies is set when a genre is missing entirely
	// from one side, which changes the bar chart's categories.
	HasCriticalInconsistencies bool
}

// GenerateInconsistencyReport creates a report over all sources.
func GenerateInconsistencyReport(sources []DataSource, opts DiffOptions) (*InconsistencyReport, error) {
	diffs, err := CheckAllSourcesConsistent(sources, opts)
	if err != nil {
		return nil, err
	}
	report := &InconsistencyReport{Sources: sources, Diffs: diffs}
	for _, d := range diffs {
		report.TotalInconsistencies += len(d.MissingInA) + len(d.MissingInB) + len(d.CountMismatch)
		if len(d.MissingInA) > 0 || len(d.MissingInB) > 0 {
			report.HasCriticalInconsistencies = true
		}
	}
	return report, nil
}
