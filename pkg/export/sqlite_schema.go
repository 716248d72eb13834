package export

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is recorded in the meta table of every snapshot.
const SchemaVersion = 1

// CreateSchema creates the snapshot tables and indexes.
func CreateSchema(db *sql.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"records", `
			CREATE TABLE IF NOT EXISTS records (
				id INTEGER PRIMARY KEY,
				genre TEXT NOT NULL,
				effect TEXT NOT NULL,
				hours REAL NOT NULL,
				depression REAL,
				anxiety REAL NOT NULL
			)`},
		{"genre_aggregates", `
			CREATE TABLE IF NOT EXISTS genre_aggregates (
				genre TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				mean_depression REAL,
				record_count INTEGER NOT NULL
			)`},
		{"flows", `
			CREATE TABLE IF NOT EXISTS flows (
				genre TEXT NOT NULL,
				effect TEXT NOT NULL,
				count INTEGER NOT NULL,
				PRIMARY KEY (genre, effect)
			)`},
		{"meta", `
			CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY,
				value TEXT
			)`},
		{"idx_records_genre", `CREATE INDEX IF NOT EXISTS idx_records_genre ON records(genre)`},
		{"idx_records_effect", `CREATE INDEX IF NOT EXISTS idx_records_effect ON records(effect)`},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

// OptimizeDatabase compacts the snapshot. Call it last, before closing.
func OptimizeDatabase(db *sql.DB) error {
	for _, pragma := range []string{`PRAGMA journal_mode=DELETE`, `ANALYZE`, `PRAGMA optimize`} {
		// best effort; some pragmas fail depending on state
		_, _ = db.Exec(pragma)
	}
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// InsertMetaValue inserts or replaces a metadata pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}
