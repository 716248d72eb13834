package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/testutil"
)

func TestListFlagSplitsAndRepeats(t *testing.T) {
	var l listFlag
	for _, v := range []string{"Rock, Jazz", "", " Pop "} {
		if err := l.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"Rock", "Jazz", "Pop"}
	if len(l) != len(want) {
		t.Fatalf("list = %v, want %v", l, want)
	}
	for i := range want {
		if l[i] != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, l[i], want[i])
		}
	}
	if l.String() != "Rock,Jazz,Pop" {
		t.Errorf("String() = %q", l.String())
	}
}

func TestSelectionEvents(t *testing.T) {
	tbl := testutil.NewDefault().Table(200)

	tests := []struct {
		name    string
		sort    string
		scatter string
		sankey  []string
		events  int
		errText string
	}{
		{name: "none"},
		{name: "sort only", sort: "Descending", events: 1},
		{name: "sort label", sort: "Ascending Score", events: 1},
		{name: "all three", sort: "ascending", scatter: "rock", sankey: []string{"Jazz", "pop"}, events: 3},
		{name: "scatter all", scatter: "All", events: 1},
		{name: "bad sort", sort: "random", errText: "--sort"},
		{name: "scatter typo", scatter: "Rokc", errText: `did you mean "Rock"`},
		{name: "sankey unknown", sankey: []string{"Jazz", "Polka"}, errText: `--sankey: unknown genre "Polka"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := selectionEvents(tbl, tt.sort, tt.scatter, tt.sankey)
			if tt.errText != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Fatalf("err = %v, want containing %q", err, tt.errText)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != tt.events {
				t.Errorf("events = %d, want %d", len(events), tt.events)
			}
		})
	}
}

func TestSelectionEventsCanonicalizeGenres(t *testing.T) {
	tbl := testutil.NewDefault().Table(200)
	events, err := selectionEvents(tbl, "", "", []string{"hip HOP", "r&b"})
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if ev.Mount != dashboard.MountSankey || ev.Control != chart.SankeyControlGenre {
		t.Fatalf("event = %+v", ev)
	}
	if len(ev.Values) != 2 || ev.Values[0] != "Hip hop" || ev.Values[1] != "R&B" {
		t.Errorf("values = %v", ev.Values)
	}
}

func TestBindSettledAppliesSelections(t *testing.T) {
	tbl := testutil.NewDefault().Table(200)
	events, err := selectionEvents(tbl, "descending", "Rock", nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := dashboard.DefaultOptions()
	opts.Speed = 0
	d, err := bindSettled(tbl, opts, events)
	if err != nil {
		t.Fatal(err)
	}
	if d.Active(time.Now()) {
		t.Error("dashboard should be settled")
	}
	for _, c := range d.Controls(dashboard.MountBar) {
		if c.ID == chart.BarControlSort && !c.IsSelected("descending") {
			t.Errorf("sort control = %+v", c)
		}
	}
	for _, c := range d.Controls(dashboard.MountScatter) {
		if c.ID == chart.ScatterControlGenre && !c.IsSelected("Rock") {
			t.Errorf("scatter control = %+v", c)
		}
	}
}

func TestAutoCloseAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"250", 250 * time.Millisecond, true},
		{" 10 ", 10 * time.Millisecond, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := autoCloseAfter(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("autoCloseAfter(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "data:\n  path: survey.csv\ndashboard:\n  basic: true\n  speed: 0\n  brush_scope: all\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Data.Path != "survey.csv" || !cfg.Dashboard.Basic {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err != nil {
		t.Errorf("missing config should fall back to defaults, got %v", err)
	}
}
