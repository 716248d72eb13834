// Package testutil provides deterministic survey fixtures and assertions for
// tests across the module.
package testutil

import (
	"encoding/csv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/vanderheijden86/mxmh/pkg/model"
)

// DefaultGenres are the favourite genres of the real survey, in the order
// they first appear there.
var DefaultGenres = []string{
	"Latin", "Rock", "Video game music", "Jazz", "R&B", "K pop", "Country",
	"EDM", "Hip hop", "Pop", "Rap", "Classical", "Metal", "Folk", "Lofi", "Gospel",
}

// GeneratorConfig controls survey generation.
type GeneratorConfig struct {
	Seed   int64    // Random seed (0 = 42)
	Genres []string // Genre universe (nil = DefaultGenres)
	// MissingDepression is the share of rows whose depression cell is left
	// empty in CSV output (and therefore loads as 0).
	MissingDepression float64
	// DropRows is the share of rows written with an empty anxiety cell, which
	// loading discards.
	DropRows float64
	MaxHours float64 // upper bound of hours per day (default 24)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, Genres: DefaultGenres, MaxHours: 24}
}

// Generator creates synthetic survey responses.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if len(cfg.Genres) == 0 {
		cfg.Genres = DefaultGenres
	}
	if cfg.MaxHours <= 0 {
		cfg.MaxHours = 24
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with the default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Row is one raw CSV row before cleaning.
type Row struct {
	Genre      string
	Effect     string
	Anxiety    string
	Hours      string
	Depression string
}

// Rows generates n raw rows, including the dirty ones requested by the config.
func (g *Generator) Rows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		genre := g.cfg.Genres[g.rng.Intn(len(g.cfg.Genres))]
		effect := model.Effects[g.rng.Intn(len(model.Effects))]
		hours := math.Round(g.rng.Float64()*g.cfg.MaxHours*2) / 2
		depression := strconv.Itoa(g.rng.Intn(11))
		anxiety := strconv.Itoa(g.rng.Intn(11))
		if g.rng.Float64() < g.cfg.MissingDepression {
			depression = ""
		}
		if g.rng.Float64() < g.cfg.DropRows {
			anxiety = ""
		}
		rows[i] = Row{
			Genre:      genre,
			Effect:     string(effect),
			Anxiety:    anxiety,
			Hours:      strconv.FormatFloat(hours, 'f', -1, 64),
			Depression: depression,
		}
	}
	return rows
}

// Records generates n clean records.
func (g *Generator) Records(n int) []model.Record {
	records := make([]model.Record, n)
	for i := range records {
		records[i] = model.Record{
			Genre:      g.cfg.Genres[g.rng.Intn(len(g.cfg.Genres))],
			Effect:     model.Effects[g.rng.Intn(len(model.Effects))],
			Hours:      math.Round(g.rng.Float64()*g.cfg.MaxHours*2) / 2,
			Depression: float64(g.rng.Intn(11)),
			Anxiety:    float64(g.rng.Intn(11)),
		}
	}
	return records
}

// Table generates a table of n clean records.
func (g *Generator) Table(n int) *model.Table {
	return model.NewTable(g.Records(n))
}

// CSVHeader is the survey header, with a few of the real survey's unused
// columns around the ones mxmh reads.
var CSVHeader = []string{"Timestamp", "Age", "Hours per day", "Fav genre", "Anxiety", "Depression", "Music effects"}

// ToCSV renders rows under CSVHeader.
func ToCSV(rows []Row) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(CSVHeader)
	for i, r := range rows {
		_ = w.Write([]string{strconv.Itoa(i), "21", r.Hours, r.Genre, r.Anxiety, r.Depression, r.Effect})
	}
	w.Flush()
	return b.String()
}

// RecordsToRows converts clean records back into raw rows.
func RecordsToRows(records []model.Record) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		dep := ""
		if r.HasDepression() {
			dep = strconv.FormatFloat(r.Depression, 'f', -1, 64)
		}
		rows[i] = Row{
			Genre:      r.Genre,
			Effect:     string(r.Effect),
			Anxiety:    strconv.FormatFloat(r.Anxiety, 'f', -1, 64),
			Hours:      strconv.FormatFloat(r.Hours, 'f', -1, 64),
			Depression: dep,
		}
	}
	return rows
}

// WriteCSV writes rows to name inside dir and returns the path.
func WriteCSV(t *testing.T, dir, name string, rows []Row) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(ToCSV(rows)), 0o644); err != nil {
		t.Fatalf("failed to write survey CSV: %v", err)
	}
	return path
}
