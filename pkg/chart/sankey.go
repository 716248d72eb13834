package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/sankey"
	"github.com/vanderheijden86/mxmh/pkg/scale"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// SankeyControlGenre is the id of the Sankey view's genre selector.
const SankeyControlGenre = "sankeyGenre"

// Sankey transition timings and styling.
const (
	SankeyEnterDuration   = 800 * time.Millisecond
	SankeyExitDuration    = 400 * time.Millisecond
	TooltipFadeIn         = 200 * time.Millisecond
	TooltipFadeOut        = 300 * time.Millisecond
	NodeFill              = "#C3B7F7"
	linkLayer             = "link"
	nodeLayer             = "node"
	nodeLabelLayer        = "node-label"
	tooltipLayer          = "tooltip"
	sankeyTitle           = "sankey-title"
	linkOpacity           = 0.4
	linkHighlight         = 1.0
	tooltipOpacity        = 0.9
	ribbonSamples         = 24
	tooltipPadding        = 6
	tooltipLineHeight     = 15
	tooltipCharWidthRatio = 0.6
)

// Flow is the record count of one (genre, effect) pair.
type Flow struct {
	Genre  string `json:"genre"`
	Effect string `json:"effect"`
	Count  int    `json:"count"`
}

// Shares is a genre node's outflow split over the three known effects.
// Percentages are NaN when the node has no outflow.
type Shares struct {
	Genre    string  `json:"genre"`
	Total    float64 `json:"total"`
	Improve  float64 `json:"improve"`
	NoEffect float64 `json:"no_effect"`
	Worsen   float64 `json:"worsen"`
}

// Lines returns "Improve: 50.0%"-style lines in effect order.
func (s Shares) Lines() []string {
	return []string{
		"Improve: " + model.Percent(s.Improve, s.Total) + "%",
		"No effect: " + model.Percent(s.NoEffect, s.Total) + "%",
		"Worsen: " + model.Percent(s.Worsen, s.Total) + "%",
	}
}

func (s Shares) String() string {
	return strings.Join(s.Lines(), " / ")
}

// HoverKind is what the pointer rests on in the Sankey view.
type HoverKind int

const (
	HoverNone HoverKind = iota
	HoverLink
	HoverNode
)

// SankeyHover is the hovered element and the pointer position that anchors
// the tooltip.
type SankeyHover struct {
	Kind   HoverKind
	Source string // link source, or the node name
	Target string // link target
	X, Y   float64
}

// SankeyState is the Sankey view's explicit state.
type SankeyState struct {
	Filter model.GenreFilter
	Hover  SankeyHover
}

// SankeyView is the genre-to-effect flow diagram.
type SankeyView struct {
	table       *model.Table
	geo         Geometry
	opts        sankey.Options
	color       *scale.Ordinal
	state       SankeyState
	flows       []Flow
	graph       *sankey.Graph
	interactive bool
	plan        scene.Plan
}

// NewSankeyView lays out the unfiltered table.
func NewSankeyView(t *model.Table, geo Geometry, opts sankey.Options) *SankeyView {
	v := &SankeyView{
		table:       t,
		geo:         geo,
		opts:        opts,
		color:       scale.NewOrdinal(t.Genres(), scale.Set3),
		state:       SankeyState{Filter: model.AllGenres()},
		interactive: true,
	}
	v.rebuild()
	return v
}

// SetInteractive toggles the selector, hover and tooltips.
func (v *SankeyView) SetInteractive(on bool) {
	v.interactive = on
	if !on {
		v.state.Hover = SankeyHover{}
		if !v.state.Filter.IsAll() {
			v.state.Filter = model.AllGenres()
			v.rebuild()
		}
		v.plan = nil
	}
}

// State returns a copy of the view state.
func (v *SankeyView) State() SankeyState {
	return v.state
}

// Flows returns the link table of the current filter in first-seen order.
func (v *SankeyView) Flows() []Flow {
	return append([]Flow(nil), v.flows...)
}

// Graph returns the computed layout, or nil when nothing is drawn.
func (v *SankeyView) Graph() *sankey.Graph {
	return v.graph
}

// SetFilter rebuilds the link and node tables for f and reruns the layout.
func (v *SankeyView) SetFilter(f model.GenreFilter) error {
	for _, g := range f.Genres() {
		if !v.table.HasGenre(g) {
			return fmt.Errorf("genre %q: %w", g, ErrUnknownOption)
		}
	}
	v.state.Filter = f
	v.state.Hover = SankeyHover{}
	v.rebuild()
	return nil
}

// BuildFlows counts records per (genre, effect) pair over the filtered table.
// Pairs are ordered by first appearance of the genre, then of the effect
// within that genre; zero-weight pairs never appear.
func BuildFlows(t *model.Table, f model.GenreFilter) []Flow {
	type pair struct{ genre, effect string }
	var order []pair
	counts := make(map[pair]int)
	genreSeen := make(map[string]int)
	var genres []string
	byGenre := make(map[string][]pair)
	t.Each(func(_ int, r model.Record) {
		if !f.Match(r.Genre) {
			return
		}
		p := pair{r.Genre, string(r.Effect)}
		if _, ok := genreSeen[r.Genre]; !ok {
			genreSeen[r.Genre] = len(genres)
			genres = append(genres, r.Genre)
		}
		if counts[p] == 0 {
			byGenre[r.Genre] = append(byGenre[r.Genre], p)
		}
		counts[p]++
	})
	for _, g := range genres {
		order = append(order, byGenre[g]...)
	}
	out := make([]Flow, 0, len(order))
	for _, p := range order {
		out = append(out, Flow{Genre: p.genre, Effect: p.effect, Count: counts[p]})
	}
	return out
}

func (v *SankeyView) rebuild() {
	defer metrics.Timer(metrics.SankeyLayout)()
	v.flows = BuildFlows(v.table, v.state.Filter)
	v.graph = nil
	v.plan = v.rebuildPlan()
	if len(v.flows) == 0 {
		debug.Log("sankey: no flows for filter %s", v.state.Filter)
		return
	}

	var names []string
	seen := make(map[string]bool)
	links := make([]sankey.Link, 0, len(v.flows))
	for _, fl := range v.flows {
		for _, n := range []string{fl.Genre, fl.Effect} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
		links = append(links, sankey.Link{Source: fl.Genre, Target: fl.Effect, Value: float64(fl.Count)})
	}
	g, err := sankey.Layout(names, links, v.opts)
	if err != nil {
		debug.Log("sankey: layout failed: %v", err)
		return
	}
	v.graph = g
}

func (v *SankeyView) rebuildPlan() scene.Plan {
	fadeOut := func(m scene.Mark) scene.Attrs {
		a := m.Attrs
		a.Opacity = 0
		return a
	}
	return scene.Plan{
		linkLayer: {
			Enter:  SankeyEnterDuration,
			Update: SankeyEnterDuration,
			Exit:   SankeyExitDuration,
			EnterFrom: func(m scene.Mark) scene.Attrs {
				a := m.Attrs
				a.StrokeOpacity, a.StrokeWidth = 0, 0
				return a
			},
			ExitTo: fadeOut,
		},
		nodeLayer: {
			Enter:  SankeyEnterDuration,
			Update: SankeyEnterDuration,
			Exit:   SankeyExitDuration,
			EnterFrom: func(m scene.Mark) scene.Attrs {
				a := m.Attrs
				a.H = 0
				return a
			},
			ExitTo: fadeOut,
		},
		nodeLabelLayer: {
			Enter:     SankeyEnterDuration,
			Update:    SankeyEnterDuration,
			Exit:      SankeyExitDuration,
			EnterFrom: fadeOut,
			ExitTo:    fadeOut,
		},
		tooltipLayer: v.tooltipTransition(),
	}
}

func (v *SankeyView) tooltipTransition() scene.Transition {
	fade := func(m scene.Mark) scene.Attrs {
		a := m.Attrs
		a.Opacity = 0
		return a
	}
	return scene.Transition{Enter: TooltipFadeIn, Exit: TooltipFadeOut, EnterFrom: fade, ExitTo: fade}
}

func (v *SankeyView) hoverPlan() scene.Plan {
	return scene.Plan{tooltipLayer: v.tooltipTransition()}
}

// Shares returns the outflow split of a genre node in the current layout.
func (v *SankeyView) Shares(genre string) (Shares, bool) {
	if v.graph == nil {
		return Shares{}, false
	}
	if _, ok := v.graph.NodeByName(genre); !ok {
		return Shares{}, false
	}
	s := Shares{Genre: genre}
	var values []float64
	for _, l := range v.graph.Outgoing(genre) {
		values = append(values, l.Value)
		switch model.Effect(v.graph.Nodes[l.Target].Name) {
		case model.EffectImprove:
			s.Improve += l.Value
		case model.EffectNoEffect:
			s.NoEffect += l.Value
		case model.EffectWorsen:
			s.Worsen += l.Value
		}
	}
	s.Total = sum(values)
	return s, true
}

// HoverLink raises the link's opacity and shows its tooltip.
func (v *SankeyView) HoverLink(source, target string, x, y float64) bool {
	if !v.interactive || v.graph == nil || !v.hasLink(source, target) {
		return false
	}
	h := SankeyHover{Kind: HoverLink, Source: source, Target: target, X: x, Y: y}
	if h == v.state.Hover {
		return false
	}
	v.state.Hover = h
	v.plan = v.hoverPlan()
	return true
}

// HoverNode highlights the node's links and shows its tooltip.
func (v *SankeyView) HoverNode(name string, x, y float64) bool {
	if !v.interactive || v.graph == nil {
		return false
	}
	if _, ok := v.graph.NodeByName(name); !ok {
		return false
	}
	h := SankeyHover{Kind: HoverNode, Source: name, X: x, Y: y}
	if h == v.state.Hover {
		return false
	}
	v.state.Hover = h
	v.plan = v.hoverPlan()
	return true
}

// Unhover restores link opacity and hides the tooltip.
func (v *SankeyView) Unhover() bool {
	if v.state.Hover.Kind == HoverNone {
		return false
	}
	v.state.Hover = SankeyHover{}
	v.plan = v.hoverPlan()
	return true
}

func (v *SankeyView) hasLink(source, target string) bool {
	for _, l := range v.graph.Outgoing(source) {
		if v.graph.Nodes[l.Target].Name == target {
			return true
		}
	}
	return false
}

// Tooltip returns the tooltip lines for the hovered element.
func (v *SankeyView) Tooltip() ([]string, bool) {
	if !v.interactive || v.graph == nil {
		return nil, false
	}
	h := v.state.Hover
	switch h.Kind {
	case HoverLink:
		for _, l := range v.graph.Outgoing(h.Source) {
			if v.graph.Nodes[l.Target].Name == h.Target {
				return []string{h.Source + " → " + h.Target, "Value: " + formatCount(l.Value)}, true
			}
		}
	case HoverNode:
		if v.table.HasGenre(h.Source) {
			s, _ := v.Shares(h.Source)
			return append([]string{h.Source}, s.Lines()...), true
		}
		n, _ := v.graph.NodeByName(h.Source)
		return []string{h.Source, "Records: " + formatCount(n.Value)}, true
	}
	return nil, false
}

func formatCount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LinkKey is the scene key of the ribbon from source to target.
func LinkKey(source, target string) scene.Key {
	return scene.MakeKey(linkLayer, source+" → "+target)
}

// NodeKey is the scene key of a node rectangle.
func NodeKey(name string) scene.Key {
	return scene.MakeKey(nodeLayer, name)
}

func (v *SankeyView) linkHighlighted(source, target string) bool {
	h := v.state.Hover
	switch h.Kind {
	case HoverLink:
		return h.Source == source && h.Target == target
	case HoverNode:
		if v.table.HasGenre(h.Source) {
			return h.Source == source
		}
		return h.Source == target
	}
	return false
}

// Plan returns the transitions for the most recent state change.
func (v *SankeyView) Plan() scene.Plan {
	return v.plan
}

// Controls returns the genre selector. Several genres may be selected.
func (v *SankeyView) Controls() []Control {
	if !v.interactive {
		return nil
	}
	return []Control{{
		ID:       SankeyControlGenre,
		Label:    "Filter Genres:",
		Options:  genreOptions(v.table),
		Selected: v.state.Filter.Values(),
		Multiple: true,
	}}
}

// SetControl applies a selector change.
func (v *SankeyView) SetControl(id string, values []string) error {
	if !v.interactive || id != SankeyControlGenre {
		return fmt.Errorf("sankey view control %q: %w", id, ErrUnknownControl)
	}
	return v.SetFilter(model.ParseSelection(values))
}

// HandlePointer maps pointer input onto node and link hover.
func (v *SankeyView) HandlePointer(p Pointer) bool {
	if !v.interactive {
		return false
	}
	switch p.Kind {
	case PointerMove:
		m, ok := v.Scene().HitTest(p.X, p.Y, nodeLayer, linkLayer)
		if !ok {
			return v.Unhover()
		}
		if m.Key.Layer() == nodeLayer {
			return v.HoverNode(m.Key.ID(), p.X, p.Y)
		}
		for _, l := range v.graph.Links {
			src, dst := v.graph.Nodes[l.Source].Name, v.graph.Nodes[l.Target].Name
			if LinkKey(src, dst) == m.Key {
				return v.HoverLink(src, dst, p.X, p.Y)
			}
		}
	case PointerLeave:
		return v.Unhover()
	}
	return false
}

// Scene derives the drawing plan from the current state.
func (v *SankeyView) Scene() *scene.Scene {
	defer metrics.Timer(metrics.SceneDerive)()
	geo := v.geo
	s := scene.New(geo.Width, geo.Height, Background)
	if !v.interactive {
		s.Add(title(sankeyTitle, geo.Width, 20, "Perceived Effects of Mental Health by Favorite Genre", titleFontSize))
	}
	g := v.graph
	if g == nil {
		return s
	}

	for _, l := range g.Links {
		src, dst := g.Nodes[l.Source].Name, g.Nodes[l.Target].Name
		p := scene.Path(LinkKey(src, dst), sankey.RibbonPath(g, l), sankey.RibbonPoints(g, l, ribbonSamples), v.color.Color(src), math.Max(1, l.Width))
		p.StrokeOpacity = linkOpacity
		if v.linkHighlighted(src, dst) {
			p.StrokeOpacity = linkHighlight
		}
		p.Interactive = v.interactive
		s.Add(p)
	}

	for _, n := range g.Nodes {
		r := scene.Rect(NodeKey(n.Name), n.X0, n.Y0, n.X1-n.X0, n.Y1-n.Y0, NodeFill)
		r.Stroke = NodeStroke
		r.StrokeWidth = 1
		r.Interactive = v.interactive
		s.Add(r)
	}
	for _, n := range g.Nodes {
		x, anchor := n.X0-6, "end"
		if n.X0 < geo.Width/2 {
			x, anchor = n.X1+6, "start"
		}
		y := (n.Y0+n.Y1)/2 + 0.35*labelFontSize
		s.Add(scene.Text(scene.MakeKey(nodeLabelLayer, n.Name), x, y, n.Name, TextColor, anchor, labelFontSize))
	}

	if lines, ok := v.Tooltip(); ok {
		s.Add(v.tooltipMarks(lines)...)
	}
	return s
}

func (v *SankeyView) tooltipMarks(lines []string) []scene.Mark {
	longest := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > longest {
			longest = n
		}
	}
	w := float64(longest)*tooltipFontSize*tooltipCharWidthRatio + 2*tooltipPadding
	h := float64(len(lines))*tooltipLineHeight + 2*tooltipPadding
	x := v.state.Hover.X + 12
	y := v.state.Hover.Y - 28
	x = math.Max(0, math.Min(x, v.geo.Width-w))
	y = math.Max(0, math.Min(y, v.geo.Height-h))

	box := scene.Rect(scene.MakeKey(tooltipLayer, "box"), x, y, w, h, TooltipFill)
	box.R = 4
	box.Opacity = tooltipOpacity
	text := scene.Text(scene.MakeKey(tooltipLayer, "text"), x+tooltipPadding, y+tooltipPadding+tooltipFontSize, strings.Join(lines, "\n"), TextColor, "start", tooltipFontSize)
	text.Opacity = tooltipOpacity
	return []scene.Mark{box, text}
}
