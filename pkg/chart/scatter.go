package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/scale"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// ScatterControlGenre is the id of the scatter view's genre selector.
const ScatterControlGenre = "scatterGenre"

// Scatter transition timings and styling.
const (
	ScatterEnterDuration = 600 * time.Millisecond
	ScatterExitDuration  = 300 * time.Millisecond

	dot            = "dot"
	brushLayer     = "brush"
	statsLayer     = "stats"
	scatterAxisX   = "scatter-axis-x"
	scatterAxisY   = "scatter-axis-y"
	scatterTitle   = "scatter-title"
	dotRadius      = 4
	basicDotRadius = 3
	dotOpacity     = 0.8
	brushedOpacity = 1
	outsideOpacity = 0.2
	scatterTicks   = 10
)

// BrushScope picks which records a brush counts.
type BrushScope int

const (
	// BrushRendered counts only records that pass the genre filter.
	BrushRendered BrushScope = iota
	// BrushAllRecords counts every record under the rectangle, filtered out
	// or not.
	BrushAllRecords
)

func (s BrushScope) String() string {
	if s == BrushAllRecords {
		return "all"
	}
	return "rendered"
}

// ParseBrushScope reads the config spelling of a scope.
func ParseBrushScope(s string) (BrushScope, error) {
	switch s {
	case "", "filtered", "rendered":
		return BrushRendered, nil
	case "all":
		return BrushAllRecords, nil
	}
	return BrushRendered, fmt.Errorf("brush scope %q: %w", s, ErrUnknownOption)
}

// ScatterState is the scatter view's explicit state.
type ScatterState struct {
	Filter   model.GenreFilter
	Brush    *scene.Bounds
	Brushing bool
}

// BrushSummary is the readout of a finished brush.
type BrushSummary struct {
	Points        int     `json:"points"`
	AvgHours      float64 `json:"avg_hours"`
	AvgDepression float64 `json:"avg_depression"`
}

// Lines returns the panel text, one entry per line.
func (b BrushSummary) Lines() []string {
	return []string{
		"Points: " + strconv.Itoa(b.Points),
		"Avg Hours: " + model.Fixed(b.AvgHours, 1),
		"Avg Depr: " + model.Fixed(b.AvgDepression, 1),
	}
}

func (b BrushSummary) String() string {
	return strings.Join(b.Lines(), ", ")
}

// ScatterView is the hours-vs-depression scatter plot.
type ScatterView struct {
	table       *model.Table
	geo         Geometry
	x, y        *scale.Linear
	color       *scale.Ordinal
	extent      scene.Bounds
	state       ScatterState
	anchor      [2]float64
	scope       BrushScope
	interactive bool
	plan        scene.Plan
}

// NewScatterView builds the scales over the unfiltered table and starts with
// the All filter and no brush.
func NewScatterView(t *model.Table, geo Geometry) *ScatterView {
	m := geo.Margin
	maxHours := t.MaxHours()
	v := &ScatterView{
		table:       t,
		geo:         geo,
		x:           scale.NewLinear(0, maxHours, m.Left, geo.Width-m.Right),
		y:           scale.NewLinear(0, 10, geo.Height-m.Bottom, m.Top),
		color:       scale.NewOrdinal(t.Genres(), scale.Tableau10),
		extent:      scene.NewBounds(m.Left, m.Top, geo.Width-m.Right, geo.Height-m.Bottom),
		state:       ScatterState{Filter: model.AllGenres()},
		interactive: true,
	}
	v.plan = v.filterPlan()
	return v
}

// SetInteractive toggles the selector, brush and summary panel.
func (v *ScatterView) SetInteractive(on bool) {
	v.interactive = on
	if !on {
		v.state = ScatterState{Filter: model.AllGenres()}
		v.plan = nil
	}
}

// SetScope chooses which records the brush readout counts.
func (v *ScatterView) SetScope(s BrushScope) {
	v.scope = s
}

// State returns a copy of the view state.
func (v *ScatterView) State() ScatterState {
	s := v.state
	if s.Brush != nil {
		b := *s.Brush
		s.Brush = &b
	}
	return s
}

// Extent is the brushable plot area.
func (v *ScatterView) Extent() scene.Bounds {
	return v.extent
}

// Position returns the pixel center of record i, computed over the
// unfiltered scales.
func (v *ScatterView) Position(i int) (float64, float64) {
	r := v.table.At(i)
	return v.x.Scale(r.Hours), v.y.Scale(r.Depression)
}

// SetFilter shows All or a single genre and clears the brush.
func (v *ScatterView) SetFilter(f model.GenreFilter) error {
	if !f.IsAll() {
		gs := f.Genres()
		if len(gs) != 1 {
			return fmt.Errorf("scatter filter takes one genre, got %d: %w", len(gs), ErrUnknownOption)
		}
		if !v.table.HasGenre(gs[0]) {
			return fmt.Errorf("genre %q: %w", gs[0], ErrUnknownOption)
		}
	}
	v.state.Filter = f
	v.state.Brush = nil
	v.state.Brushing = false
	v.plan = v.filterPlan()
	return nil
}

func (v *ScatterView) filterPlan() scene.Plan {
	return scene.Plan{
		dot: {
			Enter:  ScatterEnterDuration,
			Update: ScatterEnterDuration,
			Exit:   ScatterExitDuration,
			EnterFrom: func(m scene.Mark) scene.Attrs {
				a := m.Attrs
				a.R, a.Opacity = 0, 0
				return a
			},
			ExitTo: func(m scene.Mark) scene.Attrs {
				a := m.Attrs
				a.R, a.Opacity = 0, 0
				return a
			},
		},
	}
}

// Rendered returns the indices of the plotted records.
func (v *ScatterView) Rendered() []int {
	var out []int
	for _, i := range v.table.Select(v.state.Filter) {
		if v.table.At(i).Plottable() {
			out = append(out, i)
		}
	}
	return out
}

// BrushStart anchors a new brush at (x,y), clamped to the plot area.
func (v *ScatterView) BrushStart(x, y float64) bool {
	if !v.interactive {
		return false
	}
	x, y = v.extent.Clamp(x, y)
	v.anchor = [2]float64{x, y}
	b := scene.NewBounds(x, y, x, y)
	v.state.Brush = &b
	v.state.Brushing = true
	v.plan = nil
	return true
}

// BrushMove extends the active brush to (x,y).
func (v *ScatterView) BrushMove(x, y float64) bool {
	if !v.state.Brushing {
		return false
	}
	x, y = v.extent.Clamp(x, y)
	b := scene.NewBounds(v.anchor[0], v.anchor[1], x, y)
	v.state.Brush = &b
	v.plan = nil
	return true
}

// BrushEnd finishes the brush. A zero-area rectangle clears the selection.
func (v *ScatterView) BrushEnd() bool {
	if !v.state.Brushing {
		return false
	}
	v.state.Brushing = false
	if v.state.Brush == nil || v.state.Brush.Empty() {
		v.state.Brush = nil
	}
	v.plan = nil
	return true
}

// ClearBrush removes any brush.
func (v *ScatterView) ClearBrush() bool {
	if v.state.Brush == nil && !v.state.Brushing {
		return false
	}
	v.state.Brush = nil
	v.state.Brushing = false
	v.plan = nil
	return true
}

// Brushed returns the indices of the records inside the brush, honoring the
// brush scope.
func (v *ScatterView) Brushed() []int {
	if v.state.Brush == nil {
		return nil
	}
	var candidates []int
	if v.scope == BrushAllRecords {
		candidates = v.table.Select(model.AllGenres())
	} else {
		candidates = v.table.Select(v.state.Filter)
	}
	b := *v.state.Brush
	var out []int
	for _, i := range candidates {
		if !v.table.At(i).Plottable() {
			continue
		}
		if x, y := v.Position(i); b.Contains(x, y) {
			out = append(out, i)
		}
	}
	return out
}

// Summary returns the panel readout. It is absent while dragging and when
// there is no brush.
func (v *ScatterView) Summary() (BrushSummary, bool) {
	if !v.interactive || v.state.Brush == nil || v.state.Brushing {
		return BrushSummary{}, false
	}
	idx := v.Brushed()
	hours := make([]float64, len(idx))
	depr := make([]float64, len(idx))
	for k, i := range idx {
		r := v.table.At(i)
		hours[k], depr[k] = r.Hours, r.Depression
	}
	return BrushSummary{Points: len(idx), AvgHours: mean(hours), AvgDepression: mean(depr)}, true
}

// Plan returns the transitions for the most recent state change.
func (v *ScatterView) Plan() scene.Plan {
	return v.plan
}

// Controls returns the genre selector.
func (v *ScatterView) Controls() []Control {
	if !v.interactive {
		return nil
	}
	return []Control{{
		ID:       ScatterControlGenre,
		Label:    "Filter Genres:",
		Options:  genreOptions(v.table),
		Selected: v.state.Filter.Values(),
	}}
}

// SetControl applies a selector change.
func (v *ScatterView) SetControl(id string, values []string) error {
	if !v.interactive || id != ScatterControlGenre {
		return fmt.Errorf("scatter view control %q: %w", id, ErrUnknownControl)
	}
	if len(values) != 1 {
		return fmt.Errorf("scatter filter takes one value, got %d: %w", len(values), ErrUnknownOption)
	}
	return v.SetFilter(model.ParseSelection(values))
}

// HandlePointer drives the brush from pointer input.
func (v *ScatterView) HandlePointer(p Pointer) bool {
	if !v.interactive {
		return false
	}
	switch p.Kind {
	case PointerDown:
		// a press inside the current brush re-anchors it
		if v.extent.Contains(p.X, p.Y) {
			return v.BrushStart(p.X, p.Y)
		}
	case PointerMove:
		return v.BrushMove(p.X, p.Y)
	case PointerUp:
		v.BrushMove(p.X, p.Y)
		return v.BrushEnd()
	}
	return false
}

// DotKey is the scene key of record i's circle.
func DotKey(i int) scene.Key {
	return scene.MakeKey(dot, strconv.Itoa(i))
}

// Scene derives the drawing plan from the current state.
func (v *ScatterView) Scene() *scene.Scene {
	defer metrics.Timer(metrics.SceneDerive)()
	geo := v.geo
	m := geo.Margin
	s := scene.New(geo.Width, geo.Height, Background)

	s.Add(bottomAxis(scatterAxisX, v.x, geo.Height-m.Bottom, scatterTicks)...)
	s.Add(leftAxis(scatterAxisY, v.y, m.Left, scatterTicks)...)
	if v.interactive {
		s.Add(title(scatterTitle, geo.Width, m.Top/2, "Music Listening vs Depression", titleFontSize))
	} else {
		s.Add(title(scatterTitle, geo.Width, m.Top/2, "Depression Score vs. Hours of Music Listening", titleFontSize))
		s.Add(scene.Text(scene.MakeKey(scatterTitle, "x"), geo.Width/2, geo.Height-10, "Hours of Music Listened (per day)", TextColor, "middle", labelFontSize))
		yt := scene.Text(scene.MakeKey(scatterTitle, "y"), 12, geo.Height/2, "Depression Score", TextColor, "middle", labelFontSize)
		yt.Rotate = -90
		s.Add(yt)
	}

	var inside map[int]bool
	if v.state.Brush != nil {
		inside = make(map[int]bool)
		for _, i := range v.Brushed() {
			inside[i] = true
		}
	}
	radius := float64(dotRadius)
	if !v.interactive {
		radius = basicDotRadius
	}
	for _, i := range v.Rendered() {
		x, y := v.Position(i)
		c := scene.Circle(DotKey(i), x, y, radius, v.color.Color(v.table.At(i).Genre))
		c.Opacity = dotOpacity
		if inside != nil {
			if inside[i] {
				c.Opacity = brushedOpacity
			} else {
				c.Opacity = outsideOpacity
			}
		}
		s.Add(c)
	}

	if b := v.state.Brush; b != nil {
		sel := scene.Rect(scene.MakeKey(brushLayer, "selection"), b.X0, b.Y0, b.X1-b.X0, b.Y1-b.Y0, "#777")
		sel.Opacity = 0.3
		sel.Stroke = "#fff"
		sel.StrokeWidth = 1
		s.Add(sel)
	}

	if sum, ok := v.Summary(); ok {
		x0, y0 := geo.Width-150, 20.0
		box := scene.Rect(scene.MakeKey(statsLayer, "box"), x0, y0, 130, 50, TooltipFill)
		box.R = 5
		s.Add(box)
		for k, line := range sum.Lines() {
			s.Add(scene.Text(scene.MakeKey(statsLayer, strconv.Itoa(k)), x0+5, y0+15*float64(k+1), line, TextColor, "start", labelFontSize))
		}
	}
	return s
}

// RecordAt returns the topmost rendered record whose circle, grown by slop,
// contains (x,y). Hosts with coarse pointers pass their cell size as slop.
func (v *ScatterView) RecordAt(x, y, slop float64) (int, bool) {
	rendered := v.Rendered()
	for k := len(rendered) - 1; k >= 0; k-- {
		cx, cy := v.Position(rendered[k])
		if math.Hypot(x-cx, y-cy) <= dotRadius+slop {
			return rendered[k], true
		}
	}
	return 0, false
}
