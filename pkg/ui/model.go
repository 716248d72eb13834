// Package ui is the terminal host of the dashboard: it rasterizes the three
// chart scenes into panes, turns keys and mouse input into dashboard events
// and rebuilds everything when the data file changes.
package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/watcher"
)

// Loader reloads the survey table; the string describes where it came from.
type Loader func() (*model.Table, string, error)

// Options configures the terminal host.
type Options struct {
	Dashboard dashboard.Options
	// Source describes the initial table's origin for the footer.
	Source string
	// Loader rebuilds the table on reload; nil disables reloading.
	Loader Loader
	// Watcher triggers a reload when the data file changes.
	Watcher *watcher.Watcher
	// ExportDir receives SVG snapshots on the export key.
	ExportDir     string
	FrameInterval time.Duration
	// CopyFunc writes to the clipboard; defaults to atotto/clipboard.
	CopyFunc func(string) error
}

// FileChangedMsg is sent when the data file changes on disk
type FileChangedMsg struct{}

// dataLoadedMsg carries the result of a reload.
type dataLoadedMsg struct {
	table  *model.Table
	source string
	err    error
}

// frameTickMsg drives transitions while any mount animates.
type frameTickMsg time.Time

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func loadCmd(load Loader) tea.Cmd {
	return func() tea.Msg {
		t, src, err := load()
		return dataLoadedMsg{table: t, source: src, err: err}
	}
}

func frameTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// rect is a screen area in cells.
type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// canvas returns the chart area inside a pane: below the border, title and
// control rows.
func (r rect) canvas() rect {
	return rect{x: r.x + 1, y: r.y + 3, w: max(r.w-2, 1), h: max(r.h-4, 1)}
}

var paneTitles = map[string]string{
	dashboard.MountBar:     "Depression by favorite genre",
	dashboard.MountScatter: "Hours per day vs depression",
	dashboard.MountSankey:  "Music effects by genre",
}

// Model is the bubbletea model of the terminal dashboard.
type Model struct {
	opts   Options
	dash   *dashboard.Dashboard
	table  *model.Table
	source string

	theme    Theme
	keys     KeyMap
	help     help.Model
	helpVP   viewport.Model
	showHelp bool

	focus   int // index into dashboard.Mounts
	control int // control index within the focused pane
	option  int // option cursor within the focused control

	width, height int
	pressed       bool
	pressAt       [2]int
	dragged       bool
	ticking       bool

	// last scatter pointer position inside the plot area
	hovering bool
	hoverAt  [2]float64

	statusMsg   string
	statusIsErr bool
}

// NewModel binds a dashboard for t and returns the terminal model.
func NewModel(t *model.Table, opts Options) (Model, error) {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	if opts.Dashboard.Clock == nil {
		opts.Dashboard.Clock = time.Now
	}
	if opts.CopyFunc == nil {
		opts.CopyFunc = clipboard.WriteAll
	}
	m := Model{
		opts:   opts,
		theme:  DefaultTheme(lipgloss.DefaultRenderer()),
		keys:   DefaultKeyMap(),
		help:   help.New(),
		helpVP: viewport.New(80, 20),
		width:  120,
		height: 40,
	}
	m.keys.setBasic(opts.Dashboard.Basic)
	if err := m.bind(t, opts.Source); err != nil {
		return Model{}, err
	}
	return m, nil
}

// bind starts a new dashboard lifetime for t.
func (m *Model) bind(t *model.Table, source string) error {
	d, err := dashboard.Bind(dashboard.AllMounts(), t, m.opts.Dashboard)
	if err != nil {
		return err
	}
	m.dash, m.table, m.source = d, d.Table(), source
	m.control, m.option = 0, 0
	m.pressed, m.dragged = false, false
	m.hovering = false
	m.syncOption()
	return nil
}

// Dashboard returns the bound dashboard.
func (m Model) Dashboard() *dashboard.Dashboard {
	return m.dash
}

// Focused returns the mount id of the focused pane.
func (m Model) Focused() string {
	return dashboard.Mounts[m.focus]
}

// Status returns the last status line message.
func (m Model) Status() string {
	return m.statusMsg
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameTickCmd(m.opts.FrameInterval)}
	if m.opts.Watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.helpVP.Width = msg.Width - 4
		m.helpVP.Height = msg.Height - 4
		m.helpVP.SetContent(renderHelp(m.helpVP.Width))
		return m, nil

	case frameTickMsg:
		now := time.Time(msg)
		if m.dash.Active(now) {
			m.ticking = true
			return m, frameTickCmd(m.opts.FrameInterval)
		}
		m.ticking = false
		return m, nil

	case FileChangedMsg:
		var cmds []tea.Cmd
		if m.opts.Watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
		}
		if m.opts.Loader != nil {
			m.setStatus("Data file changed, reloading…", false)
			cmds = append(cmds, loadCmd(m.opts.Loader))
		}
		return m, tea.Batch(cmds...)

	case dataLoadedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Reload failed: %v", msg.err), true)
			return m, nil
		}
		if err := m.bind(msg.table, msg.source); err != nil {
			m.setStatus(fmt.Sprintf("Reload failed: %v", err), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Reloaded %s records", humanize.Comma(int64(m.table.Len()))), false)
		return m, m.animate()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg, m.statusIsErr = s, isErr
}

// animate starts the frame ticker if a transition is running.
func (m *Model) animate() tea.Cmd {
	if m.ticking || !m.dash.Active(m.opts.Dashboard.Clock()) {
		return nil
	}
	m.ticking = true
	return frameTickCmd(m.opts.FrameInterval)
}

func (m *Model) dispatch(ev dashboard.Event) tea.Cmd {
	if _, err := m.dash.Dispatch(ev); err != nil {
		debug.Log("ui: %v", err)
		m.setStatus(err.Error(), true)
		return nil
	}
	return m.animate()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Help), msg.String() == "esc", key.Matches(msg, m.keys.Quit):
			m.showHelp = false
			return m, nil
		}
		var cmd tea.Cmd
		m.helpVP, cmd = m.helpVP.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		m.helpVP.SetContent(renderHelp(m.helpVP.Width))
		m.helpVP.GotoTop()
	case key.Matches(msg, m.keys.NextPane):
		return m, m.setFocus((m.focus + 1) % len(dashboard.Mounts))
	case key.Matches(msg, m.keys.PrevPane):
		return m, m.setFocus((m.focus + len(dashboard.Mounts) - 1) % len(dashboard.Mounts))
	case key.Matches(msg, m.keys.NextControl):
		if n := len(m.controls()); n > 0 {
			m.control = (m.control + 1) % n
			m.syncOption()
		}
	case key.Matches(msg, m.keys.PrevOption):
		return m, m.moveOption(-1)
	case key.Matches(msg, m.keys.NextOption):
		return m, m.moveOption(1)
	case key.Matches(msg, m.keys.Toggle):
		return m, m.toggleOption()
	case key.Matches(msg, m.keys.Copy):
		m.copyReadout()
	case key.Matches(msg, m.keys.Export):
		m.exportSnapshots()
	case key.Matches(msg, m.keys.Reload):
		if m.opts.Loader != nil {
			m.setStatus("Reloading…", false)
			return m, loadCmd(m.opts.Loader)
		}
	}
	return m, nil
}

func (m *Model) setFocus(i int) tea.Cmd {
	if i == m.focus {
		return nil
	}
	// the old pane loses the pointer
	m.hovering = false
	cmd := m.dispatch(dashboard.PointerAt(m.Focused(), chart.PointerLeave, 0, 0))
	m.focus, m.control = i, 0
	m.syncOption()
	return cmd
}

func (m Model) controls() []chart.Control {
	return m.dash.Controls(m.Focused())
}

func (m Model) currentControl() (chart.Control, bool) {
	ctls := m.controls()
	if m.control < 0 || m.control >= len(ctls) {
		return chart.Control{}, false
	}
	return ctls[m.control], true
}

// syncOption puts the option cursor on the control's first selected value.
func (m *Model) syncOption() {
	m.option = 0
	c, ok := m.currentControl()
	if !ok || len(c.Selected) == 0 {
		return
	}
	for i, o := range c.Options {
		if o.Value == c.Selected[0] {
			m.option = i
			return
		}
	}
}

// moveOption moves the cursor. Single selects apply the new option at once;
// multi selects wait for a toggle.
func (m *Model) moveOption(delta int) tea.Cmd {
	c, ok := m.currentControl()
	if !ok || len(c.Options) == 0 {
		return nil
	}
	m.option = (m.option + delta + len(c.Options)) % len(c.Options)
	if c.Multiple {
		return nil
	}
	return m.dispatch(dashboard.Select(m.Focused(), c.ID, c.Options[m.option].Value))
}

func (m *Model) toggleOption() tea.Cmd {
	c, ok := m.currentControl()
	if !ok || m.option >= len(c.Options) {
		return nil
	}
	value := c.Options[m.option].Value
	if !c.Multiple {
		return m.dispatch(dashboard.Select(m.Focused(), c.ID, value))
	}
	return m.dispatch(dashboard.Select(m.Focused(), c.ID, toggleValue(c.Selected, value)...))
}

// toggleValue flips value in a multi selection. "All" is exclusive: picking
// it clears the rest, and picking a genre drops it.
func toggleValue(selected []string, value string) []string {
	if value == model.AllLabel {
		return []string{model.AllLabel}
	}
	var out []string
	found := false
	for _, s := range selected {
		switch s {
		case model.AllLabel:
		case value:
			found = true
		default:
			out = append(out, s)
		}
	}
	if !found {
		out = append(out, value)
	}
	if len(out) == 0 {
		return []string{model.AllLabel}
	}
	return out
}

// Readout returns the text the copy key puts on the clipboard for the
// focused pane: the hovered bar, the brush summary, the hovered point or the
// Sankey tooltip.
func (m Model) Readout() (string, bool) {
	switch m.Focused() {
	case dashboard.MountBar:
		st := m.dash.Bar.State()
		if st.Hovered != "" {
			if mean, ok := m.dash.Bar.Mean(st.Hovered); ok {
				return st.Hovered + ": " + model.Fixed(mean, 2), true
			}
		}
		if sel := m.dash.Bar.Selected(); len(sel) > 0 {
			var parts []string
			for _, g := range sel {
				if mean, ok := m.dash.Bar.Mean(g); ok {
					parts = append(parts, g+": "+model.Fixed(mean, 2))
				}
			}
			return strings.Join(parts, ", "), len(parts) > 0
		}
	case dashboard.MountScatter:
		if s, ok := m.dash.Scatter.Summary(); ok {
			return s.String(), true
		}
		if m.hovering {
			cw, ch := m.cellSize(dashboard.MountScatter)
			if i, ok := m.dash.Scatter.RecordAt(m.hoverAt[0], m.hoverAt[1], math.Hypot(cw, ch)/2); ok {
				return formatRecord(m.table.At(i)), true
			}
		}
	case dashboard.MountSankey:
		if lines, ok := m.dash.Sankey.Tooltip(); ok {
			return strings.Join(lines, ", "), true
		}
	}
	return "", false
}

func formatRecord(r model.Record) string {
	return fmt.Sprintf("%s: %s h/day, depression %s", r.Genre, model.Fixed(r.Hours, 1), model.Fixed(r.Depression, 1))
}

func (m *Model) copyReadout() {
	text, ok := m.Readout()
	if !ok {
		m.setStatus("Nothing to copy", false)
		return
	}
	if err := m.opts.CopyFunc(text); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus("📋 Copied "+truncate(text, 60), false)
}

func (m *Model) exportSnapshots() {
	dir := m.opts.ExportDir
	if dir == "" {
		dir = "mxmh-export"
	}
	paths, err := export.SaveSnapshots(context.Background(), m.dash, dir, export.FormatSVG)
	if err != nil {
		m.setStatus(fmt.Sprintf("Export failed: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Exported %d snapshots to %s", len(paths), dir), false)
}

// layout returns the outer rect of every pane: bar and scatter side by side
// on top, the Sankey diagram across the bottom.
func (m Model) layout() map[string]rect {
	body := max(m.height-3, 8)
	top := max(body*2/5, 6)
	half := m.width / 2
	return map[string]rect{
		dashboard.MountBar:     {x: 0, y: 1, w: half, h: top},
		dashboard.MountScatter: {x: half, y: 1, w: m.width - half, h: top},
		dashboard.MountSankey:  {x: 0, y: 1 + top, w: m.width, h: max(body-top, 6)},
	}
}

func (m Model) geometry(mount string) chart.Geometry {
	switch mount {
	case dashboard.MountBar:
		return m.opts.Dashboard.Bar
	case dashboard.MountScatter:
		return m.opts.Dashboard.Scatter
	default:
		return m.opts.Dashboard.Sankey
	}
}

// cellSize is the scene extent of one screen cell in mount's canvas.
func (m Model) cellSize(mount string) (float64, float64) {
	c := m.layout()[mount].canvas()
	g := m.geometry(mount)
	return g.Width / float64(c.w), g.Height / float64(c.h)
}

// toScene maps a screen cell inside mount's canvas to scene coordinates.
func (m Model) toScene(mount string, x, y int) (float64, float64, bool) {
	c := m.layout()[mount].canvas()
	if !c.contains(x, y) {
		return 0, 0, false
	}
	g := m.geometry(mount)
	sx := (float64(x-c.x) + 0.5) * g.Width / float64(c.w)
	sy := (float64(y-c.y) + 0.5) * g.Height / float64(c.h)
	return sx, sy, true
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.showHelp || m.dash.Basic() {
		return m, nil
	}
	var cmds []tea.Cmd
	var hit string
	for i, id := range dashboard.Mounts {
		if _, _, ok := m.toScene(id, msg.X, msg.Y); ok {
			hit = id
			if msg.Action == tea.MouseActionPress && !m.pressed {
				cmds = append(cmds, m.setFocus(i))
			}
			break
		}
	}
	m.hovering = false
	if hit == "" {
		if msg.Action == tea.MouseActionRelease && m.pressed {
			m.pressed = false
			sx, sy := m.clampToCanvas(m.Focused(), msg.X, msg.Y)
			return m, m.dispatch(dashboard.PointerAt(m.Focused(), chart.PointerUp, sx, sy))
		}
		if !m.pressed {
			return m, m.dispatch(dashboard.PointerAt(m.Focused(), chart.PointerLeave, 0, 0))
		}
		return m, nil
	}
	if m.pressed && hit != m.Focused() {
		// drags stay with the pane they started in
		hit = m.Focused()
	}
	sx, sy, _ := m.toScene(hit, msg.X, msg.Y)
	if m.pressed {
		sx, sy = m.clampToCanvas(hit, msg.X, msg.Y)
	}
	if hit == dashboard.MountScatter && m.dash.Scatter.Extent().Contains(sx, sy) {
		m.hovering, m.hoverAt = true, [2]float64{sx, sy}
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		m.pressed, m.dragged = true, false
		m.pressAt = [2]int{msg.X, msg.Y}
		cmds = append(cmds, m.dispatch(dashboard.PointerAt(hit, chart.PointerDown, sx, sy)))
	case tea.MouseActionMotion:
		if m.pressed && (msg.X != m.pressAt[0] || msg.Y != m.pressAt[1]) {
			m.dragged = true
		}
		cmds = append(cmds, m.dispatch(dashboard.PointerAt(hit, chart.PointerMove, sx, sy)))
	case tea.MouseActionRelease:
		if !m.pressed {
			return m, nil
		}
		m.pressed = false
		cmds = append(cmds, m.dispatch(dashboard.PointerAt(hit, chart.PointerUp, sx, sy)))
		if !m.dragged {
			cmds = append(cmds, m.dispatch(dashboard.PointerAt(hit, chart.PointerClick, sx, sy)))
		}
	}
	return m, tea.Batch(cmds...)
}

// clampToCanvas maps a screen cell to scene coordinates, pinning cells
// outside the canvas to its edge.
func (m Model) clampToCanvas(mount string, x, y int) (float64, float64) {
	c := m.layout()[mount].canvas()
	x = min(max(x, c.x), c.x+c.w-1)
	y = min(max(y, c.y), c.y+c.h-1)
	sx, sy, _ := m.toScene(mount, x, y)
	return sx, sy
}
