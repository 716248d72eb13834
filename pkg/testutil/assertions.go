package testutil

import (
	"math"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/sankey"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// AssertRecordCount verifies the number of records in t.
func AssertRecordCount(t *testing.T, tbl *model.Table, expected int) {
	t.Helper()
	if tbl.Len() != expected {
		t.Errorf("expected %d records, got %d", expected, tbl.Len())
	}
}

// AssertGenres verifies the genre universe and its order.
func AssertGenres(t *testing.T, tbl *model.Table, expected ...string) {
	t.Helper()
	got := tbl.Genres()
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Errorf("genres = %v, want %v", got, expected)
	}
}

// AssertFlowConservation verifies that every node with both inflow and
// outflow carries equal amounts, and that each node's value equals the
// larger of its inflow and outflow.
func AssertFlowConservation(t *testing.T, g *sankey.Graph) {
	t.Helper()
	if g == nil {
		t.Fatal("graph is nil")
	}
	for _, n := range g.Nodes {
		var in, out float64
		for _, li := range n.TargetLinks {
			in += g.Links[li].Value
		}
		for _, li := range n.SourceLinks {
			out += g.Links[li].Value
		}
		if want := math.Max(in, out); math.Abs(n.Value-want) > 1e-9 {
			t.Errorf("node %q value = %v, want %v", n.Name, n.Value, want)
		}
	}
}

// AssertMark verifies that s contains key and returns the mark.
func AssertMark(t *testing.T, s *scene.Scene, key scene.Key) scene.Mark {
	t.Helper()
	m, ok := s.Get(key)
	if !ok {
		t.Fatalf("scene has no mark %q", key)
	}
	return m
}

// AssertNoMark verifies that s lacks key.
func AssertNoMark(t *testing.T, s *scene.Scene, key scene.Key) {
	t.Helper()
	if _, ok := s.Get(key); ok {
		t.Errorf("scene unexpectedly has mark %q", key)
	}
}

// AssertOpacity verifies a mark's opacity within 1e-9.
func AssertOpacity(t *testing.T, s *scene.Scene, key scene.Key, want float64) {
	t.Helper()
	m := AssertMark(t, s, key)
	if math.Abs(m.Opacity-want) > 1e-9 {
		t.Errorf("%s opacity = %v, want %v", key, m.Opacity, want)
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
func AssertJSONEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}
