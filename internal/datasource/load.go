package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// DefaultPath is where the survey CSV lives relative to the working
// directory.
const DefaultPath = "data/mxmh_survey_results.csv"

// Survey column names.
const (
	ColGenre      = "Fav genre"
	ColEffect     = "Music effects"
	ColAnxiety    = "Anxiety"
	ColHours      = "Hours per day"
	ColDepression = "Depression"
)

var requiredColumns = []string{ColGenre, ColEffect, ColAnxiety, ColHours, ColDepression}

// ErrLoad wraps every failure to read or parse a source.
var ErrLoad = errors.New("load survey")

// ErrMissingColumn reports a CSV header without a required column.
var ErrMissingColumn = errors.New("missing column")

// Load reads and cleans the survey CSV at path. On failure it returns an
// empty table together with the error, so callers can render the empty
// state.
func Load(path string) (*model.Table, error) {
	defer metrics.Timer(metrics.DataLoad)()
	f, err := os.Open(path)
	if err != nil {
		return model.Empty(), fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()
	t, err := LoadCSV(f)
	if err != nil {
		return model.Empty(), fmt.Errorf("%s: %w", path, err)
	}
	debug.Log("datasource: loaded %d records from %s", t.Len(), path)
	return t, nil
}

// LoadCSV parses survey rows from r. Rows with an empty genre or effect, or
// with an empty or non-numeric anxiety or hours cell, are dropped. An empty
// depression cell counts as 0; an unparseable one becomes NaN.
func LoadCSV(r io.Reader) (*model.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return model.Empty(), fmt.Errorf("%w: read header: %w", ErrLoad, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return model.Empty(), fmt.Errorf("%w: %w %q", ErrLoad, ErrMissingColumn, c)
		}
	}

	var records []model.Record
	dropped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Empty(), fmt.Errorf("%w: line %d: %w", ErrLoad, line, err)
		}
		cell := func(col string) string {
			if i := cols[col]; i < len(row) {
				return row[i]
			}
			return ""
		}
		rec, ok := cleanRow(cell(ColGenre), cell(ColEffect), cell(ColAnxiety), cell(ColHours), cell(ColDepression))
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	debug.LogIf(dropped > 0, "datasource: dropped %d incomplete rows", dropped)
	return model.NewTable(records), nil
}

func cleanRow(genre, effect, anxiety, hours, depression string) (model.Record, bool) {
	if genre == "" || effect == "" || anxiety == "" || hours == "" {
		return model.Record{}, false
	}
	a := model.ParseNumber(anxiety)
	h := model.ParseNumber(hours)
	if math.IsNaN(a) || math.IsNaN(h) {
		return model.Record{}, false
	}
	return model.Record{
		Genre:      genre,
		Effect:     model.Effect(effect),
		Anxiety:    a,
		Hours:      h,
		Depression: model.ParseNumber(depression),
	}, true
}

// LoadFromSource loads records from a discovered source.
func LoadFromSource(source DataSource) (*model.Table, error) {
	switch source.Type {
	case SourceTypeCSV:
		return Load(source.Path)
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return model.Empty(), fmt.Errorf("%w: open snapshot %s: %w", ErrLoad, source.Path, err)
		}
		defer reader.Close()
		return reader.LoadTable()
	default:
		return model.Empty(), fmt.Errorf("%w: unknown source type %q", ErrLoad, source.Type)
	}
}

// LoadSmart discovers the CSV and snapshot sources, picks the freshest valid
// one and loads it. It falls back to loading the CSV directly so the caller
// gets the CSV's own error when nothing is usable.
func LoadSmart(opts DiscoveryOptions) (*model.Table, DataSource, error) {
	if opts.DataPath == "" {
		opts.DataPath = DefaultPath
	}
	opts.Validate = true
	t, best, err := loadBest(opts)
	if err == nil {
		debug.Log("datasource: using %s", best)
		return t, best, nil
	}
	debug.Log("datasource: smart load failed (%v), falling back to %s", err, opts.DataPath)
	t, err = Load(opts.DataPath)
	return t, DataSource{Type: SourceTypeCSV, Path: opts.DataPath, Priority: PriorityCSV, Valid: err == nil, RecordCount: t.Len()}, err
}

func loadBest(opts DiscoveryOptions) (*model.Table, DataSource, error) {
	sources, err := DiscoverSources(opts)
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}
	t, err := LoadFromSource(best)
	if err != nil {
		return nil, DataSource{}, err
	}
	return t, best, nil
}
