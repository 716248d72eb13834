package ui

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, basic bool) (Model, *[]string) {
	t.Helper()
	opts := dashboard.DefaultOptions()
	opts.Speed = 0
	opts.Basic = basic
	opts.Clock = func() time.Time { return fixedNow }

	var copied []string
	m, err := NewModel(testutil.NewDefault().Table(120), Options{
		Dashboard: opts,
		Source:    "mxmh_survey_results.csv",
		ExportDir: t.TempDir(),
		CopyFunc: func(s string) error {
			copied = append(copied, s)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, &copied
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	um, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return um
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFocusCycles(t *testing.T) {
	m, _ := newTestModel(t, false)
	if m.Focused() != dashboard.MountBar {
		t.Fatalf("initial focus = %s", m.Focused())
	}
	m = update(t, m, keyMsg("tab"))
	if m.Focused() != dashboard.MountScatter {
		t.Errorf("after tab focus = %s", m.Focused())
	}
	m = update(t, m, keyMsg("shift+tab"))
	m = update(t, m, keyMsg("shift+tab"))
	if m.Focused() != dashboard.MountSankey {
		t.Errorf("after two shift+tab focus = %s", m.Focused())
	}
}

func TestSortKeyChangesBarOrder(t *testing.T) {
	m, _ := newTestModel(t, false)
	bar := m.Dashboard().Bar
	ctl := m.Dashboard().Controls(dashboard.MountBar)[0]
	start := string(bar.State().Sort)

	var idx int
	for i, o := range ctl.Options {
		if o.Value == start {
			idx = i
		}
	}
	want := ctl.Options[(idx+1)%len(ctl.Options)].Value

	m = update(t, m, keyMsg("right"))
	if got := string(m.Dashboard().Bar.State().Sort); got != want {
		t.Errorf("sort = %s, want %s", got, want)
	}
	m = update(t, m, keyMsg("left"))
	if got := string(m.Dashboard().Bar.State().Sort); got != start {
		t.Errorf("sort after left = %s, want %s", got, start)
	}
}

func TestSankeyMultiSelectToggle(t *testing.T) {
	m, _ := newTestModel(t, false)
	m = update(t, m, keyMsg("tab"))
	m = update(t, m, keyMsg("tab"))
	if m.Focused() != dashboard.MountSankey {
		t.Fatalf("focus = %s", m.Focused())
	}
	ctl := m.Dashboard().Controls(dashboard.MountSankey)[0]
	genre := ctl.Options[1].Value

	// moving the cursor alone does not filter
	m = update(t, m, keyMsg("right"))
	if !m.Dashboard().Sankey.State().Filter.IsAll() {
		t.Fatal("filter changed before toggle")
	}
	m = update(t, m, keyMsg(" "))
	if got := m.Dashboard().Sankey.State().Filter.Values(); !reflect.DeepEqual(got, []string{genre}) {
		t.Errorf("filter = %v, want [%s]", got, genre)
	}
	m = update(t, m, keyMsg(" "))
	if !m.Dashboard().Sankey.State().Filter.IsAll() {
		t.Errorf("toggling the only genre off should select All, got %v", m.Dashboard().Sankey.State().Filter.Values())
	}
}

func TestToggleValue(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		value    string
		want     []string
	}{
		{"all to genre", []string{model.AllLabel}, "Rock", []string{"Rock"}},
		{"add genre", []string{"Rock"}, "Pop", []string{"Rock", "Pop"}},
		{"remove genre", []string{"Rock", "Pop"}, "Rock", []string{"Pop"}},
		{"remove last", []string{"Rock"}, "Rock", []string{model.AllLabel}},
		{"pick all", []string{"Rock", "Pop"}, model.AllLabel, []string{model.AllLabel}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toggleValue(tt.selected, tt.value); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("toggleValue(%v, %q) = %v, want %v", tt.selected, tt.value, got, tt.want)
			}
		})
	}
}

func TestCopyBrushReadout(t *testing.T) {
	m, copied := newTestModel(t, false)
	d := m.Dashboard()
	ext := d.Scatter.Extent()
	for _, ev := range []dashboard.Event{
		dashboard.PointerAt(dashboard.MountScatter, chart.PointerDown, ext.X0+1, ext.Y0+1),
		dashboard.PointerAt(dashboard.MountScatter, chart.PointerMove, ext.X1-1, ext.Y1-1),
		dashboard.PointerAt(dashboard.MountScatter, chart.PointerUp, ext.X1-1, ext.Y1-1),
	} {
		if _, err := d.Dispatch(ev); err != nil {
			t.Fatalf("dispatch %v: %v", ev.Kind, err)
		}
	}
	summary, ok := d.Scatter.Summary()
	if !ok {
		t.Fatal("expected a brush summary")
	}

	m = update(t, m, keyMsg("tab"))
	m = update(t, m, keyMsg("y"))
	if len(*copied) != 1 || (*copied)[0] != summary.String() {
		t.Errorf("copied %v, want %q", *copied, summary.String())
	}
	if !strings.Contains(m.Status(), "Copied") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestScatterHoverReadout(t *testing.T) {
	m, copied := newTestModel(t, false)
	m = update(t, m, keyMsg("tab"))
	sc := m.Dashboard().Scatter
	ext := sc.Extent()
	cw, ch := m.cellSize(dashboard.MountScatter)
	slop := math.Hypot(cw, ch) / 2

	c := m.layout()[dashboard.MountScatter].canvas()
	var cx, cy, idx int
	found := false
	for y := c.y; y < c.y+c.h && !found; y++ {
		for x := c.x; x < c.x+c.w; x++ {
			sx, sy, _ := m.toScene(dashboard.MountScatter, x, y)
			if !ext.Contains(sx, sy) {
				continue
			}
			if i, ok := sc.RecordAt(sx, sy, slop); ok {
				cx, cy, idx, found = x, y, i, true
				break
			}
		}
	}
	if !found {
		t.Fatal("no screen cell over a scatter point")
	}

	m = update(t, m, tea.MouseMsg{X: cx, Y: cy, Action: tea.MouseActionMotion})
	r := m.Dashboard().Table().At(idx)
	text, ok := m.Readout()
	if !ok || !strings.HasPrefix(text, r.Genre+": ") || !strings.Contains(text, "h/day") {
		t.Fatalf("readout = %q, %v; want the hovered %s record", text, ok, r.Genre)
	}
	m = update(t, m, keyMsg("y"))
	if len(*copied) != 1 || (*copied)[0] != text {
		t.Errorf("copied %v, want %q", *copied, text)
	}

	// leaving the panes drops the point readout
	m = update(t, m, tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionMotion})
	if text, ok := m.Readout(); ok {
		t.Errorf("readout after leaving = %q", text)
	}
}

func TestCopyWithoutReadout(t *testing.T) {
	m, copied := newTestModel(t, false)
	m = update(t, m, keyMsg("y"))
	if len(*copied) != 0 {
		t.Errorf("nothing should be copied, got %v", *copied)
	}
	if m.Status() != "Nothing to copy" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCopyClipboardError(t *testing.T) {
	m, _ := newTestModel(t, false)
	m.opts.CopyFunc = func(string) error { return errors.New("no clipboard") }
	g := m.Dashboard().Bar.Order()[0]
	m.Dashboard().Bar.Toggle(g)
	m = update(t, m, keyMsg("y"))
	if !strings.Contains(m.Status(), "no clipboard") || !m.statusIsErr {
		t.Errorf("status = %q (err=%v)", m.Status(), m.statusIsErr)
	}
}

func TestMouseClickSelectsBar(t *testing.T) {
	m, _ := newTestModel(t, false)
	bar := m.Dashboard().Bar
	g := bar.Order()[0]
	// find a screen cell over the first bar
	c := m.layout()[dashboard.MountBar].canvas()
	var cx, cy int
	found := false
	for y := c.y + c.h - 1; y >= c.y && !found; y-- {
		for x := c.x; x < c.x+c.w; x++ {
			sx, sy, _ := m.toScene(dashboard.MountBar, x, y)
			if hit, ok := bar.BarAt(sx, sy); ok && hit == g {
				cx, cy, found = x, y, true
				break
			}
		}
	}
	if !found {
		t.Fatalf("no screen cell over bar %q", g)
	}
	m = update(t, m, tea.MouseMsg{X: cx, Y: cy, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = update(t, m, tea.MouseMsg{X: cx, Y: cy, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	if sel := m.Dashboard().Bar.Selected(); !reflect.DeepEqual(sel, []string{g}) {
		t.Errorf("selected = %v, want [%s]", sel, g)
	}
}

func TestMouseFocusesPane(t *testing.T) {
	m, _ := newTestModel(t, false)
	c := m.layout()[dashboard.MountSankey].canvas()
	m = update(t, m, tea.MouseMsg{X: c.x + 1, Y: c.y + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	if m.Focused() != dashboard.MountSankey {
		t.Errorf("focus = %s, want %s", m.Focused(), dashboard.MountSankey)
	}
}

func TestBasicModeIgnoresInteraction(t *testing.T) {
	m, copied := newTestModel(t, true)
	before := m.Dashboard().Bar.State().Sort
	m = update(t, m, keyMsg("right"))
	m = update(t, m, keyMsg("y"))
	if m.Dashboard().Bar.State().Sort != before {
		t.Error("basic mode should not change the sort")
	}
	if len(*copied) != 0 {
		t.Error("basic mode should not copy")
	}
	if ctl := m.Dashboard().Controls(dashboard.MountBar); len(ctl) != 0 {
		t.Errorf("basic mode has controls: %v", ctl)
	}
	if !strings.Contains(m.View(), "(basic)") {
		t.Error("header should mark basic mode")
	}
}

func TestReloadRebindsDashboard(t *testing.T) {
	m, _ := newTestModel(t, false)
	old := m.Dashboard()
	m = update(t, m, keyMsg("right"))

	next := testutil.NewDefault().Table(40)
	m = update(t, m, dataLoadedMsg{table: next, source: "reloaded.csv"})
	if m.Dashboard() == old {
		t.Fatal("dashboard was not rebuilt")
	}
	if m.Dashboard().Table().Len() != next.Len() {
		t.Errorf("records = %d, want %d", m.Dashboard().Table().Len(), next.Len())
	}
	if !strings.HasPrefix(m.Status(), "Reloaded") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestReloadErrorKeepsDashboard(t *testing.T) {
	m, _ := newTestModel(t, false)
	old := m.Dashboard()
	m = update(t, m, dataLoadedMsg{err: errors.New("boom")})
	if m.Dashboard() != old {
		t.Error("failed reload replaced the dashboard")
	}
	if !strings.Contains(m.Status(), "boom") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestExportKeyWritesSnapshots(t *testing.T) {
	m, _ := newTestModel(t, false)
	m = update(t, m, keyMsg("e"))
	if !strings.HasPrefix(m.Status(), "Exported 3 snapshots") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestViewShowsPanes(t *testing.T) {
	m, _ := newTestModel(t, false)
	v := m.View()
	for _, title := range paneTitles {
		if !strings.Contains(v, title) {
			t.Errorf("view missing pane title %q", title)
		}
	}
	if !strings.Contains(v, "records") {
		t.Error("footer should show the record count")
	}
}

func TestHelpOverlayToggles(t *testing.T) {
	m, _ := newTestModel(t, false)
	m = update(t, m, keyMsg("?"))
	if !m.showHelp {
		t.Fatal("help overlay not shown")
	}
	m = update(t, m, keyMsg("?"))
	if m.showHelp {
		t.Error("help overlay not dismissed")
	}
}
