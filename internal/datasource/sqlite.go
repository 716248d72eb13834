package datasource

import (
	"database/sql"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// SQLiteReader reads survey records back from a snapshot database.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a snapshot read-only.
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
		debug.Log("datasource: pragma on %s: %v", source.Path, err)
	}
	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadTable reads every record in insertion order. A NULL depression is read
// back as NaN.
func (r *SQLiteReader) LoadTable() (*model.Table, error) {
	rows, err := r.db.Query(`SELECT genre, effect, hours, depression, anxiety FROM records ORDER BY id`)
	if err != nil {
		return model.Empty(), fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var rec model.Record
		var effect string
		var depression sql.NullFloat64
		if err := rows.Scan(&rec.Genre, &effect, &rec.Hours, &depression, &rec.Anxiety); err != nil {
			return model.Empty(), fmt.Errorf("scan record: %w", err)
		}
		rec.Effect = model.Effect(effect)
		rec.Depression = math.NaN()
		if depression.Valid {
			rec.Depression = depression.Float64
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.Empty(), fmt.Errorf("iterate records: %w", err)
	}
	return model.NewTable(records), nil
}

// CountRecords returns the number of stored records.
func (r *SQLiteReader) CountRecords() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Meta returns a value from the snapshot's meta table, or "" when absent.
func (r *SQLiteReader) Meta(key string) (string, error) {
	var v sql.NullString
	err := r.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v.String, nil
}
