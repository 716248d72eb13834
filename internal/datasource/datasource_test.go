package datasource

import (
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/testutil"
)

const sampleCSV = "\ufeffTimestamp,Age,Hours per day,Fav genre,Anxiety,Depression,Music effects\n" +
	"1,18,3,Rock,7,5,Improve\n" +
	"2,63,1.5,Pop,2,,No effect\n" +
	"3,18,4,Rock,,6,Improve\n" +
	"4,61,2.5,Jazz,5,n/a,Worsen\n" +
	"5,18,x,Pop,3,3,Improve\n" +
	"6,18,2,,3,3,Improve\n" +
	"7,18,1,Metal,8,9,\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCSVCleansRows(t *testing.T) {
	tbl, err := LoadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	testutil.AssertRecordCount(t, tbl, 3)
	testutil.AssertGenres(t, tbl, "Rock", "Pop", "Jazz")
	if tbl.Len() != 3 {
		t.FailNow()
	}
	if d := tbl.At(1).Depression; d != 0 {
		t.Errorf("empty depression should load as 0, got %v", d)
	}
	if d := tbl.At(2).Depression; !math.IsNaN(d) {
		t.Errorf("unparseable depression should load as NaN, got %v", d)
	}
	if h := tbl.At(1).Hours; h != 1.5 {
		t.Errorf("hours = %v, want 1.5", h)
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("Fav genre,Anxiety\nRock,3\n"))
	if !errors.Is(err, ErrMissingColumn) || !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrMissingColumn wrapped in ErrLoad, got %v", err)
	}
}

func TestLoadMissingFileReturnsEmptyTable(t *testing.T) {
	tbl, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	if tbl == nil || tbl.Len() != 0 {
		t.Fatalf("expected empty table on failure")
	}
}

func writeSnapshot(t *testing.T, path string, records []model.Record) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE records (id INTEGER PRIMARY KEY, genre TEXT NOT NULL, effect TEXT NOT NULL, hours REAL NOT NULL, depression REAL, anxiety REAL NOT NULL)`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`INSERT INTO meta (key, value) VALUES ('source', 'test')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	for i, r := range records {
		var dep any
		if r.HasDepression() {
			dep = r.Depression
		}
		if _, err := db.Exec(`INSERT INTO records (id, genre, effect, hours, depression, anxiety) VALUES (?, ?, ?, ?, ?, ?)`,
			i+1, r.Genre, string(r.Effect), r.Hours, dep, r.Anxiety); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

func TestSQLiteReaderRoundTrip(t *testing.T) {
	src, err := LoadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	path := filepath.Join(t.TempDir(), "survey.db")
	writeSnapshot(t, path, src.Records())

	reader, err := NewSQLiteReader(DataSource{Type: SourceTypeSQLite, Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteReader: %v", err)
	}
	defer reader.Close()

	got, err := reader.LoadTable()
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if Fingerprint(got) != Fingerprint(src) {
		t.Fatalf("snapshot table differs from source table")
	}
	if !math.IsNaN(got.At(2).Depression) {
		t.Errorf("NULL depression should read back as NaN")
	}
	n, err := reader.CountRecords()
	if err != nil || n != 3 {
		t.Errorf("CountRecords = %d, %v", n, err)
	}
	if v, _ := reader.Meta("source"); v != "test" {
		t.Errorf("Meta(source) = %q", v)
	}
	if v, err := reader.Meta("missing"); err != nil || v != "" {
		t.Errorf("Meta(missing) = %q, %v", v, err)
	}
}

func TestNewSQLiteReaderRejectsCSV(t *testing.T) {
	if _, err := NewSQLiteReader(DataSource{Type: SourceTypeCSV, Path: "x.csv"}); err == nil {
		t.Fatal("expected error for non-SQLite source")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	a := model.NewTable([]model.Record{{Genre: "Rock", Effect: model.EffectImprove, Hours: 1, Depression: 2, Anxiety: 3}})
	b := model.NewTable([]model.Record{{Genre: "Rock", Effect: model.EffectImprove, Hours: 1, Depression: 2.5, Anxiety: 3}})
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("different depression should change the fingerprint")
	}
	if Fingerprint(a) != Fingerprint(model.NewTable(a.Records())) {
		t.Fatal("fingerprint should be deterministic")
	}
}

func TestDiscoverAndSelectPrefersFreshest(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "survey.csv", sampleCSV)
	src, _ := LoadCSV(strings.NewReader(sampleCSV))
	dbPath := SnapshotPathFor(csvPath)
	writeSnapshot(t, dbPath, src.Records()[:2])

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(csvPath, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sources, err := DiscoverSources(DiscoveryOptions{DataPath: csvPath, Validate: true})
	if err != nil {
		t.Fatalf("DiscoverSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		t.Fatalf("SelectBestSource: %v", err)
	}
	if best.Type != SourceTypeSQLite || best.RecordCount != 2 {
		t.Fatalf("expected fresher snapshot to win, got %s", best)
	}

	diffs, err := CheckAllSourcesConsistent(sources, DefaultDiffOptions())
	if err != nil {
		t.Fatalf("CheckAllSourcesConsistent: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected one inconsistent pair, got %d", len(diffs))
	}
	if !strings.Contains(diffs[0].Summary(), "Count mismatch") {
		t.Errorf("summary missing count mismatch:\n%s", diffs[0].Summary())
	}
}

func TestSelectBestSourceTieUsesPriority(t *testing.T) {
	now := time.Now()
	best, err := SelectBestSource([]DataSource{
		{Type: SourceTypeSQLite, Priority: PrioritySQLite, ModTime: now, Valid: true},
		{Type: SourceTypeCSV, Priority: PriorityCSV, ModTime: now, Valid: true},
	})
	if err != nil || best.Type != SourceTypeCSV {
		t.Fatalf("expected CSV on tie, got %v %v", best.Type, err)
	}
	if _, err := SelectBestSource([]DataSource{{Valid: false}}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestLoadSmartFallsBackToCSVError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "Fav genre,Music effects,Anxiety,Hours per day,Depression\n")
	tbl, src, err := LoadSmart(DiscoveryOptions{DataPath: path})
	if err != nil {
		t.Fatalf("header-only CSV should load without error, got %v", err)
	}
	if tbl.Len() != 0 || src.Type != SourceTypeCSV {
		t.Fatalf("expected empty CSV table, got %d records from %s", tbl.Len(), src.Type)
	}
}

func TestDetectInconsistencies(t *testing.T) {
	a := model.NewTable([]model.Record{
		{Genre: "Rock", Effect: model.EffectImprove},
		{Genre: "Pop", Effect: model.EffectImprove},
	})
	b := model.NewTable([]model.Record{
		{Genre: "Rock", Effect: model.EffectImprove},
		{Genre: "Rock", Effect: model.EffectWorsen},
		{Genre: "Jazz", Effect: model.EffectImprove},
	})
	d := DetectInconsistencies(a, b, "a", "b", DefaultDiffOptions())
	if len(d.MissingInA) != 1 || d.MissingInA[0] != "Jazz" {
		t.Errorf("MissingInA = %v", d.MissingInA)
	}
	if len(d.MissingInB) != 1 || d.MissingInB[0] != "Pop" {
		t.Errorf("MissingInB = %v", d.MissingInB)
	}
	if len(d.CountMismatch) != 1 || d.CountMismatch[0].Genre != "Rock" {
		t.Errorf("CountMismatch = %v", d.CountMismatch)
	}
	same := DetectInconsistencies(a, a, "a", "a", DefaultDiffOptions())
	if same.HasInconsistencies() {
		t.Errorf("table should match itself: %s", same.Summary())
	}
}
