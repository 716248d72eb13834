package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/scale"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// SortMode orders the bars left to right.
type SortMode string

const (
	SortAlphabetical SortMode = "alphabetical"
	SortAscending    SortMode = "ascending"
	SortDescending   SortMode = "descending"
)

// SortModes lists the modes in selector order.
var SortModes = []SortMode{SortAlphabetical, SortAscending, SortDescending}

// Label is the selector text of the mode.
func (m SortMode) Label() string {
	switch m {
	case SortAscending:
		return "Ascending Score"
	case SortDescending:
		return "Descending Score"
	default:
		return "Alphabetical"
	}
}

// ParseSortMode validates a selector value. Case is ignored and the
// selector labels ("Descending Score") are accepted too.
func ParseSortMode(s string) (SortMode, error) {
	want := strings.TrimSpace(s)
	for _, m := range SortModes {
		if strings.EqualFold(string(m), want) || strings.EqualFold(m.Label(), want) {
			return m, nil
		}
	}
	return "", fmt.Errorf("sort mode %q: %w", s, ErrUnknownOption)
}

// BarControlSort is the id of the bar view's sort selector.
const BarControlSort = "sortMode"

// Bar transition timings.
const (
	BarSortDuration  = 1000 * time.Millisecond
	BarHoverDuration = 200 * time.Millisecond
	bar              = "bar"
	barLabel         = "bar-label"
	barAxisX         = "bar-axis-x"
	barAxisY         = "bar-axis-y"
	barTitle         = "bar-title"
	hoverFadeOpacity = 0.3
	barYTicks        = 7
)

// GenreAggregate is the mean depression of one genre.
type GenreAggregate struct {
	Genre          string  `json:"genre"`
	MeanDepression float64 `json:"mean_depression"`
}

// BarStatus is the interaction state of one bar.
type BarStatus int

const (
	BarIdle BarStatus = iota
	BarHovered
	BarSelected
	BarSelectedHovered
)

func (s BarStatus) String() string {
	switch s {
	case BarHovered:
		return "hovered"
	case BarSelected:
		return "selected"
	case BarSelectedHovered:
		return "selected+hovered"
	default:
		return "idle"
	}
}

// BarState is the bar view's explicit state.
type BarState struct {
	Sort     SortMode
	Order    []string
	Selected map[string]bool
	Hovered  string
}

// LabelKind distinguishes pinned selection labels from hover labels.
type LabelKind string

const (
	LabelPinned    LabelKind = "pinned"
	LabelTransient LabelKind = "transient"
)

// LabelKey is the scene key of a value label.
func LabelKey(genre string, kind LabelKind) scene.Key {
	return scene.MakeKey(barLabel, string(kind)+":"+genre)
}

// BarKey is the scene key of a genre's bar.
func BarKey(genre string) scene.Key {
	return scene.MakeKey(bar, genre)
}

// BarView is the genre-mean bar chart.
type BarView struct {
	table       *model.Table
	geo         Geometry
	aggregates  []GenreAggregate
	means       map[string]float64
	x           *scale.Band
	y           *scale.Linear
	color       *scale.Ordinal
	state       BarState
	interactive bool
	plan        scene.Plan
}

// NewBarView aggregates the table and starts in alphabetical order with
// nothing selected.
func NewBarView(t *model.Table, geo Geometry) *BarView {
	v := &BarView{
		table:       t,
		geo:         geo,
		means:       make(map[string]float64),
		interactive: true,
	}
	v.aggregates = AggregateDepression(t)
	maxMean := 0.0
	for _, a := range v.aggregates {
		v.means[a.Genre] = a.MeanDepression
		if !math.IsNaN(a.MeanDepression) && a.MeanDepression > maxMean {
			maxMean = a.MeanDepression
		}
	}
	if maxMean <= 0 {
		maxMean = 1
	}
	m := geo.Margin
	v.y = scale.NewLinear(0, maxMean, geo.Height-m.Bottom, m.Top).Nice(10)
	v.color = scale.NewOrdinal(t.Genres(), scale.Tableau10)
	v.state = BarState{Sort: SortAlphabetical, Selected: make(map[string]bool)}
	v.state.Order = sortedOrder(t.Genres(), SortAlphabetical, v.means)
	v.x = scale.NewBand(v.state.Order, m.Left, geo.Width-m.Right, 0.2)
	return v
}

// AggregateDepression returns one aggregate per genre in first-seen order.
// Records without a depression score do not contribute; a genre with none
// has a NaN mean.
func AggregateDepression(t *model.Table) []GenreAggregate {
	values := make(map[string][]float64)
	t.Each(func(_ int, r model.Record) {
		values[r.Genre] = append(values[r.Genre], r.Depression)
	})
	out := make([]GenreAggregate, 0, len(values))
	for _, g := range t.Genres() {
		out = append(out, GenreAggregate{Genre: g, MeanDepression: mean(values[g])})
	}
	return out
}

// SetInteractive toggles controls, selection, hover and labels.
func (v *BarView) SetInteractive(on bool) {
	v.interactive = on
	if !on {
		v.state.Hovered = ""
		v.state.Selected = make(map[string]bool)
	}
}

// Aggregates returns the per-genre means in first-seen order.
func (v *BarView) Aggregates() []GenreAggregate {
	return append([]GenreAggregate(nil), v.aggregates...)
}

// Mean returns the mean depression of genre.
func (v *BarView) Mean(genre string) (float64, bool) {
	m, ok := v.means[genre]
	return m, ok
}

// State returns a copy of the view state.
func (v *BarView) State() BarState {
	s := v.state
	s.Order = append([]string(nil), v.state.Order...)
	s.Selected = make(map[string]bool, len(v.state.Selected))
	for g := range v.state.Selected {
		s.Selected[g] = true
	}
	return s
}

// Order returns the genres left to right.
func (v *BarView) Order() []string {
	return append([]string(nil), v.state.Order...)
}

// YDomain returns the value axis domain.
func (v *BarView) YDomain() (float64, float64) {
	return v.y.Domain()
}

// SetSort reorders the bars. Ascending and descending sorts are stable with
// respect to the current order.
func (v *BarView) SetSort(mode SortMode) {
	v.state.Sort = mode
	v.state.Order = sortedOrder(v.state.Order, mode, v.means)
	v.x.SetDomain(v.state.Order)
	v.plan = scene.Plan{
		bar:      {Update: BarSortDuration},
		barLabel: {Update: BarSortDuration},
		barAxisX: {Update: BarSortDuration},
	}
}

func sortedOrder(prior []string, mode SortMode, means map[string]float64) []string {
	out := append([]string(nil), prior...)
	switch mode {
	case SortAscending, SortDescending:
		desc := mode == SortDescending
		sort.SliceStable(out, func(i, j int) bool {
			a, b := means[out[i]], means[out[j]]
			// Genres without a mean always trail.
			if math.IsNaN(a) || math.IsNaN(b) {
				return !math.IsNaN(a) && math.IsNaN(b)
			}
			if desc {
				return a > b
			}
			return a < b
		})
	default:
		sort.Strings(out)
	}
	return out
}

// Toggle adds genre to the selection or removes it. It reports whether the
// state changed.
func (v *BarView) Toggle(genre string) bool {
	if !v.interactive || !v.table.HasGenre(genre) {
		return false
	}
	if v.state.Selected[genre] {
		delete(v.state.Selected, genre)
	} else {
		v.state.Selected[genre] = true
	}
	v.plan = scene.Plan{bar: {Update: BarHoverDuration}}
	return true
}

// Hover highlights genre and fades the other bars.
func (v *BarView) Hover(genre string) bool {
	if !v.interactive || !v.table.HasGenre(genre) || v.state.Hovered == genre {
		return false
	}
	v.state.Hovered = genre
	v.plan = scene.Plan{bar: {Update: BarHoverDuration}}
	return true
}

// Unhover restores the fade and removes the transient label.
func (v *BarView) Unhover() bool {
	if v.state.Hovered == "" {
		return false
	}
	v.state.Hovered = ""
	v.plan = scene.Plan{bar: {Update: BarHoverDuration}}
	return true
}

// Status returns the interaction state of genre's bar.
func (v *BarView) Status(genre string) BarStatus {
	sel, hov := v.state.Selected[genre], v.state.Hovered == genre
	switch {
	case sel && hov:
		return BarSelectedHovered
	case sel:
		return BarSelected
	case hov:
		return BarHovered
	default:
		return BarIdle
	}
}

// Selected returns the selected genres in bar order.
func (v *BarView) Selected() []string {
	var out []string
	for _, g := range v.state.Order {
		if v.state.Selected[g] {
			out = append(out, g)
		}
	}
	return out
}

// BarAt returns the genre whose bar contains (x,y).
func (v *BarView) BarAt(x, y float64) (string, bool) {
	g, ok := v.x.Lookup(x)
	if !ok {
		return "", false
	}
	top, bottom := v.barExtent(g)
	if y < top || y > bottom {
		return "", false
	}
	return g, true
}

func (v *BarView) barExtent(genre string) (top, bottom float64) {
	bottom = v.y.Scale(0)
	m := v.means[genre]
	if math.IsNaN(m) {
		return bottom, bottom
	}
	return v.y.Scale(m), bottom
}

// Plan returns the transitions for the most recent state change.
func (v *BarView) Plan() scene.Plan {
	return v.plan
}

// Controls returns the sort selector.
func (v *BarView) Controls() []Control {
	if !v.interactive {
		return nil
	}
	c := Control{ID: BarControlSort, Label: "Sort by:", Selected: []string{string(v.state.Sort)}}
	for _, m := range SortModes {
		c.Options = append(c.Options, Option{Value: string(m), Label: m.Label()})
	}
	return []Control{c}
}

// SetControl applies a selector change.
func (v *BarView) SetControl(id string, values []string) error {
	if !v.interactive || id != BarControlSort {
		return fmt.Errorf("bar view control %q: %w", id, ErrUnknownControl)
	}
	if len(values) != 1 {
		return fmt.Errorf("sort mode takes one value, got %d: %w", len(values), ErrUnknownOption)
	}
	mode, err := ParseSortMode(values[0])
	if err != nil {
		return err
	}
	v.SetSort(mode)
	return nil
}

// HandlePointer maps pointer input onto hover and selection. It reports
// whether the state changed.
func (v *BarView) HandlePointer(p Pointer) bool {
	if !v.interactive {
		return false
	}
	switch p.Kind {
	case PointerMove:
		g, ok := v.BarAt(p.X, p.Y)
		if !ok {
			return v.Unhover()
		}
		if g == v.state.Hovered {
			return false
		}
		v.Unhover()
		return v.Hover(g)
	case PointerLeave:
		return v.Unhover()
	case PointerClick:
		if g, ok := v.BarAt(p.X, p.Y); ok {
			return v.Toggle(g)
		}
	}
	return false
}

// Scene derives the drawing plan from the current state.
func (v *BarView) Scene() *scene.Scene {
	defer metrics.Timer(metrics.SceneDerive)()
	geo := v.geo
	s := scene.New(geo.Width, geo.Height, Background)
	bw := v.x.Bandwidth()
	base := v.y.Scale(0)

	for _, g := range v.state.Order {
		x, _ := v.x.Scale(g)
		top, _ := v.barExtent(g)
		r := scene.Rect(BarKey(g), x, top, bw, base-top, v.color.Color(g))
		r.Interactive = v.interactive
		if v.state.Hovered != "" && v.state.Hovered != g {
			r.Opacity = hoverFadeOpacity
		}
		switch v.Status(g) {
		case BarHovered, BarSelected, BarSelectedHovered:
			r.Stroke = "#FFFFFF"
			r.StrokeWidth = 2
		}
		s.Add(r)
	}

	if v.interactive {
		for _, g := range v.state.Order {
			switch v.Status(g) {
			case BarSelected, BarSelectedHovered:
				s.Add(v.valueLabel(g, LabelPinned))
			case BarHovered:
				s.Add(v.valueLabel(g, LabelTransient))
			}
		}
	}

	m := geo.Margin
	s.Add(bandAxis(barAxisX, v.x, m.Left, geo.Width-m.Right, geo.Height-m.Bottom, true)...)
	s.Add(leftAxis(barAxisY, v.y, m.Left, barYTicks)...)
	s.Add(title(barTitle, geo.Width, m.Top/2, "Average Depression Score by Favorite Genre of Music", titleFontSize))
	return s
}

func (v *BarView) valueLabel(genre string, kind LabelKind) scene.Mark {
	cx, _ := v.x.Center(genre)
	top, _ := v.barExtent(genre)
	return scene.Text(LabelKey(genre, kind), cx, top-5, model.Fixed(v.means[genre], 2), TextColor, "middle", labelFontSize)
}
