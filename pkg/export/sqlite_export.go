package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/version"
)

// SQLiteExporter writes the survey table and its derived aggregates to a
// SQLite snapshot. The snapshot can be loaded back as a data source.
type SQLiteExporter struct {
	Table    *model.Table
	DataHash string
	Source   string
}

// NewSQLiteExporter creates an exporter for t.
func NewSQLiteExporter(t *model.Table, dataHash string) *SQLiteExporter {
	if t == nil {
		t = model.Empty()
	}
	return &SQLiteExporter{Table: t, DataHash: dataHash}
}

// Export writes the snapshot to dbPath, replacing any existing file.
func (e *SQLiteExporter) Export(dbPath string) error {
	defer metrics.Timer(metrics.SnapshotExport)()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := e.insertRecords(db); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	if err := e.insertAggregates(db); err != nil {
		return fmt.Errorf("insert aggregates: %w", err)
	}
	if err := e.insertFlows(db); err != nil {
		return fmt.Errorf("insert flows: %w", err)
	}
	if err := e.insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if err := OptimizeDatabase(db); err != nil {
		return fmt.Errorf("optimize database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true
	return nil
}

func (e *SQLiteExporter) insertRecords(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO records (id, genre, effect, hours, depression, anxiety)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range e.Table.Records() {
		var depression *float64
		if r.HasDepression() {
			d := r.Depression
			depression = &d
		}
		if _, err := stmt.Exec(i+1, r.Genre, string(r.Effect), r.Hours, depression, r.Anxiety); err != nil {
			return fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertAggregates(db *sql.DB) error {
	counts := make(map[string]int)
	e.Table.Each(func(_ int, r model.Record) {
		counts[r.Genre]++
	})

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO genre_aggregates (genre, position, mean_depression, record_count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, a := range chart.AggregateDepression(e.Table) {
		if _, err := stmt.Exec(a.Genre, i, finite(a.MeanDepression), counts[a.Genre]); err != nil {
			return fmt.Errorf("insert aggregate %s: %w", a.Genre, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertFlows(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO flows (genre, effect, count) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range chart.BuildFlows(e.Table, model.AllGenres()) {
		if _, err := stmt.Exec(f.Genre, f.Effect, f.Count); err != nil {
			return fmt.Errorf("insert flow %s -> %s: %w", f.Genre, f.Effect, err)
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	meta := map[string]string{
		"version":        version.Version,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
		"record_count":   strconv.Itoa(e.Table.Len()),
		"genre_count":    strconv.Itoa(len(e.Table.Genres())),
		"schema_version": strconv.Itoa(SchemaVersion),
	}
	if e.DataHash != "" {
		meta["data_hash"] = e.DataHash
	}
	if e.Source != "" {
		meta["source"] = e.Source
	}
	for key, value := range meta {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}
