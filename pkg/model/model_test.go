package model

import (
	"math"
	"testing"
)

func TestNewTableGenreUniverseFirstSeen(t *testing.T) {
	tbl := NewTable([]Record{
		{Genre: "Rock", Effect: EffectImprove},
		{Genre: "Jazz", Effect: EffectWorsen},
		{Genre: "Rock", Effect: EffectNoEffect},
		{Genre: "Pop", Effect: EffectImprove},
	})
	got := tbl.Genres()
	want := []string{"Rock", "Jazz", "Pop"}
	if len(got) != len(want) {
		t.Fatalf("genres = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("genres = %v, want %v", got, want)
		}
	}
	if !tbl.HasGenre("Pop") || tbl.HasGenre("Metal") {
		t.Errorf("unexpected genre membership")
	}

	// Mutating the copy must not leak into the table.
	got[0] = "Changed"
	if tbl.Genres()[0] != "Rock" {
		t.Errorf("Genres returned shared storage")
	}
}

func TestNilTableIsEmpty(t *testing.T) {
	var tbl *Table
	if tbl.Len() != 0 || tbl.Genres() != nil || tbl.HasGenre("Rock") {
		t.Fatal("nil table should behave as empty")
	}
	if tbl.MaxHours() != 0 {
		t.Fatal("nil table max hours should be 0")
	}
}

func TestGenreFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter GenreFilter
		genre  string
		want   bool
	}{
		{"zero value is all", GenreFilter{}, "Rock", true},
		{"all", AllGenres(), "Jazz", true},
		{"only match", OnlyGenres("Jazz"), "Jazz", true},
		{"only miss", OnlyGenres("Jazz"), "Rock", false},
		{"empty only matches nothing", OnlyGenres(), "Rock", false},
		{"selection with All", ParseSelection([]string{"Jazz", "All"}), "Rock", true},
		{"selection without All", ParseSelection([]string{"Jazz", "Pop"}), "Pop", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.genre); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.genre, got, tt.want)
			}
		})
	}

	if !OnlyGenres("A", "B").Equal(OnlyGenres("B", "A", "A")) {
		t.Error("filters with same genres should be equal")
	}
	if AllGenres().Equal(OnlyGenres()) {
		t.Error("all and none must differ")
	}
	if got := AllGenres().String(); got != "All" {
		t.Errorf("String() = %q", got)
	}
}

func TestTableSelect(t *testing.T) {
	tbl := NewTable([]Record{
		{Genre: "Rock"}, {Genre: "Jazz"}, {Genre: "Rock"},
	})
	got := tbl.Select(OnlyGenres("Rock"))
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("Select = %v", got)
	}
	if len(tbl.Select(AllGenres())) != 3 {
		t.Fatal("all filter should select every record")
	}
}

func TestFixed(t *testing.T) {
	tests := []struct {
		v    float64
		d    int
		want string
	}{
		{4, 2, "4.00"},
		{7, 2, "7.00"},
		{0.25, 1, "0.3"},
		{2.5, 0, "3"},
		{50, 1, "50.0"},
		{33.333333, 1, "33.3"},
		{66.666666, 1, "66.7"},
		{0.004, 2, "0.00"},
		{-1.25, 1, "-1.3"},
		{-0.01, 1, "0.0"},
		{1.005, 2, "1.00"}, // 1.005 is stored slightly below the tie
		{math.NaN(), 1, "NaN"},
	}
	for _, tt := range tests {
		if got := Fixed(tt.v, tt.d); got != tt.want {
			t.Errorf("Fixed(%v, %d) = %q, want %q", tt.v, tt.d, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	if ParseNumber("") != 0 || ParseNumber("  ") != 0 {
		t.Error("empty cells coerce to zero")
	}
	if ParseNumber(" 3.5 ") != 3.5 {
		t.Error("whitespace should be ignored")
	}
	if !math.IsNaN(ParseNumber("abc")) {
		t.Error("garbage should coerce to NaN")
	}
}

func TestRecordPlottable(t *testing.T) {
	if !(Record{Hours: 1, Depression: 2}).Plottable() {
		t.Error("finite record should be plottable")
	}
	if (Record{Hours: 1, Depression: math.NaN()}).Plottable() {
		t.Error("NaN depression should not be plottable")
	}
	if !EffectImprove.IsKnown() || Effect("Maybe").IsKnown() {
		t.Error("IsKnown mismatch")
	}
}
