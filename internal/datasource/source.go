// Package datasource discovers, validates and loads the survey data for
// mxmh. The primary source is the survey CSV; a SQLite snapshot written by
// `mxmh --sqlite-export` is a secondary source. When both exist the freshest
// valid one wins, with the CSV preferred on ties.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/model"
)

// SourceType identifies the kind of data source.
type SourceType string

const (
	// SourceTypeCSV is the survey results CSV.
	SourceTypeCSV SourceType = "csv"
	// SourceTypeSQLite is a snapshot database.
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values (higher is preferred when modification times are equal).
const (
	PriorityCSV    = 100
	PrioritySQLite = 50
)

// ErrNoSources is returned when discovery finds nothing usable.
var ErrNoSources = errors.New("no valid data sources")

// DataSource is a candidate source of survey records.
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Size            int64      `json:"size"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
	RecordCount     int        `json:"record_count"`
	// Hash fingerprints the cleaned records; equal hashes mean equal tables.
	Hash string `json:"hash,omitempty"`
}

// String returns a human-readable description of the source.
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = "invalid: " + s.ValidationError
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, records=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.RecordCount, status)
}

// DiscoveryOptions configures DiscoverSources.
type DiscoveryOptions struct {
	// DataPath is the survey CSV. Defaults to DefaultPath.
	DataPath string
	// SnapshotPath is the SQLite snapshot. Defaults to DataPath with a .db
	// extension.
	SnapshotPath string
	// Validate loads every discovered source and records the outcome.
	Validate bool
	// IncludeInvalid keeps sources that failed validation.
	IncludeInvalid bool
	// Logger receives discovery messages when set.
	Logger func(msg string)
}

// SnapshotPathFor returns the default snapshot location for a CSV path.
func SnapshotPathFor(dataPath string) string {
	return strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + ".db"
}

// DiscoverSources finds the CSV and snapshot sources and orders them
// freshest first.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}
	if opts.DataPath == "" {
		opts.DataPath = DefaultPath
	}
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = SnapshotPathFor(opts.DataPath)
	}

	var sources []DataSource
	for _, c := range []struct {
		typ      SourceType
		path     string
		priority int
	}{
		{SourceTypeCSV, opts.DataPath, PriorityCSV},
		{SourceTypeSQLite, opts.SnapshotPath, PrioritySQLite},
	} {
		info, err := os.Stat(c.path)
		if err != nil {
			logf("skip %s source %s: %v", c.typ, c.path, err)
			continue
		}
		if info.IsDir() {
			logf("skip %s source %s: is a directory", c.typ, c.path)
			continue
		}
		sources = append(sources, DataSource{
			Type:     c.typ,
			Path:     c.path,
			Priority: c.priority,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logf("found %s source %s (mod=%s)", c.typ, c.path, info.ModTime().Format(time.RFC3339))
	}

	if opts.Validate {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf("validation failed for %s: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	logf("discovered %d sources", len(sources))
	return sources, nil
}

// ValidateSource loads s and records whether it yields a non-empty table.
func ValidateSource(s *DataSource) error {
	t, err := LoadFromSource(*s)
	if err == nil && t.Len() == 0 {
		err = fmt.Errorf("%s: %w", s.Path, model.ErrEmpty)
	}
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.RecordCount = t.Len()
	s.Hash = Fingerprint(t)
	return nil
}

// SelectBestSource returns the freshest valid source, preferring higher
// priority on equal modification times.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil ||
			s.ModTime.After(best.ModTime) ||
			(s.ModTime.Equal(best.ModTime) && s.Priority > best.Priority) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, ErrNoSources
	}
	return *best, nil
}
