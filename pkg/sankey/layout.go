// Package sankey computes a two-dimensional flow layout: nodes are stacked in
// columns by depth and every link becomes a ribbon whose thickness is
// proportional to its value.
//
// The algorithm is the classic iterative one: node values come from link
// sums, columns from longest-path depth (justified so sinks sit in the last
// column), vertical positions from alternating left/right relaxation passes
// with collision resolution, and finally per-link offsets inside each node.
package sankey

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrCircular is returned when the links form a cycle.
var ErrCircular = errors.New("sankey: circular link")

// Options controls node geometry and the drawing extent.
type Options struct {
	NodeWidth   float64
	NodePadding float64
	X0, Y0      float64
	X1, Y1      float64
	Iterations  int
}

// DefaultOptions returns the dashboard's layout parameters for a width x
// height surface: 20px nodes, 15px padding and a small inset.
func DefaultOptions(width, height float64) Options {
	return Options{
		NodeWidth:   20,
		NodePadding: 15,
		X0:          1,
		Y0:          1,
		X1:          width - 1,
		Y1:          height - 6,
		Iterations:  6,
	}
}

// Link is a weighted flow between two named nodes.
type Link struct {
	Source string
	Target string
	Value  float64
}

// Node is a positioned node. SourceLinks and TargetLinks index Graph.Links
// in their final vertical order.
type Node struct {
	Name        string
	Index       int
	Value       float64
	Depth       int
	Height      int
	Layer       int
	X0, X1      float64
	Y0, Y1      float64
	SourceLinks []int
	TargetLinks []int
}

// PlacedLink is a positioned link. Y0 is the ribbon center at the source, Y1
// at the target.
type PlacedLink struct {
	Index  int
	Source int
	Target int
	Value  float64
	Width  float64
	Y0, Y1 float64
}

// Graph is a computed layout.
type Graph struct {
	Nodes []Node
	Links []PlacedLink
}

// NodeByName returns the node with the given name.
func (g *Graph) NodeByName(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Outgoing returns the links leaving the named node.
func (g *Graph) Outgoing(name string) []PlacedLink {
	var out []PlacedLink
	for _, l := range g.Links {
		if g.Nodes[l.Source].Name == name {
			out = append(out, l)
		}
	}
	return out
}

// Incoming returns the links entering the named node.
func (g *Graph) Incoming(name string) []PlacedLink {
	var out []PlacedLink
	for _, l := range g.Links {
		if g.Nodes[l.Target].Name == name {
			out = append(out, l)
		}
	}
	return out
}

type node struct {
	name        string
	index       int
	value       float64
	depth       int
	height      int
	layer       int
	x0, x1      float64
	y0, y1      float64
	sourceLinks []*link
	targetLinks []*link
}

type link struct {
	index  int
	source *node
	target *node
	value  float64
	width  float64
	y0, y1 float64
}

type layouter struct {
	opts    Options
	py      float64
	nodes   []*node
	links   []*link
	columns [][]*node
}

// Layout positions nodes (in the given order) and links. Links naming an
// unknown node are rejected.
func Layout(names []string, links []Link, opts Options) (*Graph, error) {
	if opts.Iterations < 0 {
		opts.Iterations = 0
	}
	l := &layouter{opts: opts}
	if err := l.computeNodeLinks(names, links); err != nil {
		return nil, err
	}
	if len(l.nodes) == 0 {
		return &Graph{}, nil
	}
	l.computeNodeValues()
	if err := l.computeNodeDepths(); err != nil {
		return nil, err
	}
	l.computeNodeBreadths()
	l.computeLinkBreadths()
	return l.graph(), nil
}

func (l *layouter) computeNodeLinks(names []string, links []Link) error {
	byName := make(map[string]*node, len(names))
	for i, name := range names {
		if _, dup := byName[name]; dup {
			return fmt.Errorf("sankey: duplicate node %q", name)
		}
		n := &node{name: name, index: i}
		byName[name] = n
		l.nodes = append(l.nodes, n)
	}
	for i, in := range links {
		src, ok := byName[in.Source]
		if !ok {
			return fmt.Errorf("sankey: missing source node %q", in.Source)
		}
		dst, ok := byName[in.Target]
		if !ok {
			return fmt.Errorf("sankey: missing target node %q", in.Target)
		}
		lk := &link{index: i, source: src, target: dst, value: in.Value}
		src.sourceLinks = append(src.sourceLinks, lk)
		dst.targetLinks = append(dst.targetLinks, lk)
		l.links = append(l.links, lk)
	}
	return nil
}

func (l *layouter) computeNodeValues() {
	for _, n := range l.nodes {
		var out, in float64
		for _, lk := range n.sourceLinks {
			out += lk.value
		}
		for _, lk := range n.targetLinks {
			in += lk.value
		}
		n.value = math.Max(out, in)
	}
}

// computeNodeDepths assigns depth (longest path from a source) and height
// (longest path to a sink) in topological order.
func (l *layouter) computeNodeDepths() error {
	g := simple.NewDirectedGraph()
	for _, n := range l.nodes {
		g.AddNode(simple.Node(n.index))
	}
	for _, lk := range l.links {
		if lk.source == lk.target {
			return ErrCircular
		}
		g.SetEdge(g.NewEdge(simple.Node(lk.source.index), simple.Node(lk.target.index)))
	}
	sorted, err := topo.Sort(g)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCircular, err)
	}

	order := make([]*node, len(sorted))
	for i, gn := range sorted {
		order[i] = l.nodes[gn.ID()]
	}
	for _, n := range order {
		for _, lk := range n.sourceLinks {
			if d := n.depth + 1; d > lk.target.depth {
				lk.target.depth = d
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		for _, lk := range n.targetLinks {
			if h := n.height + 1; h > lk.source.height {
				lk.source.height = h
			}
		}
	}
	return nil
}

// justify places nodes by depth, except sinks which go to the last column.
func justify(n *node, columns int) int {
	if len(n.sourceLinks) > 0 {
		return n.depth
	}
	return columns - 1
}

func (l *layouter) computeNodeLayers() {
	maxDepth := 0
	for _, n := range l.nodes {
		if n.depth > maxDepth {
			maxDepth = n.depth
		}
	}
	x := maxDepth + 1
	kx := 0.0
	if x > 1 {
		kx = (l.opts.X1 - l.opts.X0 - l.opts.NodeWidth) / float64(x-1)
	}
	l.columns = make([][]*node, x)
	for _, n := range l.nodes {
		i := justify(n, x)
		if i < 0 {
			i = 0
		}
		if i > x-1 {
			i = x - 1
		}
		n.layer = i
		n.x0 = l.opts.X0 + float64(i)*kx
		n.x1 = n.x0 + l.opts.NodeWidth
		l.columns[i] = append(l.columns[i], n)
	}
}

func (l *layouter) computeNodeBreadths() {
	l.computeNodeLayers()

	maxLen := 0
	for _, c := range l.columns {
		if len(c) > maxLen {
			maxLen = len(c)
		}
	}
	l.py = l.opts.NodePadding
	if maxLen > 1 {
		l.py = math.Min(l.opts.NodePadding, (l.opts.Y1-l.opts.Y0)/float64(maxLen-1))
	}

	l.initializeNodeBreadths()
	for i := 0; i < l.opts.Iterations; i++ {
		alpha := math.Pow(0.99, float64(i))
		beta := math.Max(1-alpha, float64(i+1)/float64(l.opts.Iterations))
		l.relaxRightToLeft(alpha, beta)
		l.relaxLeftToRight(alpha, beta)
	}
}

func (l *layouter) initializeNodeBreadths() {
	ky := math.Inf(1)
	for _, c := range l.columns {
		if len(c) == 0 {
			continue
		}
		var sum float64
		for _, n := range c {
			sum += n.value
		}
		if sum <= 0 {
			continue
		}
		k := (l.opts.Y1 - l.opts.Y0 - float64(len(c)-1)*l.py) / sum
		ky = math.Min(ky, k)
	}
	if math.IsInf(ky, 1) {
		ky = 0
	}

	for _, c := range l.columns {
		y := l.opts.Y0
		for _, n := range c {
			n.y0 = y
			n.y1 = y + n.value*ky
			y = n.y1 + l.py
			for _, lk := range n.sourceLinks {
				lk.width = lk.value * ky
			}
		}
		y = (l.opts.Y1 - y + l.py) / float64(len(c)+1)
		for i, n := range c {
			n.y0 += y * float64(i+1)
			n.y1 += y * float64(i+1)
		}
		reorderLinks(c)
	}
}

// relaxLeftToRight moves each node toward the weighted center of its
// incoming links.
func (l *layouter) relaxLeftToRight(alpha, beta float64) {
	for i := 1; i < len(l.columns); i++ {
		column := l.columns[i]
		for _, target := range column {
			var y, w float64
			for _, lk := range target.targetLinks {
				v := lk.value * float64(target.layer-lk.source.layer)
				y += l.targetTop(lk.source, target) * v
				w += v
			}
			if !(w > 0) {
				continue
			}
			dy := (y/w - target.y0) * alpha
			target.y0 += dy
			target.y1 += dy
			reorderNodeLinks(target)
		}
		sort.SliceStable(column, func(a, b int) bool { return column[a].y0 < column[b].y0 })
		l.resolveCollisions(column, beta)
	}
}

// relaxRightToLeft moves each node toward the weighted center of its
// outgoing links.
func (l *layouter) relaxRightToLeft(alpha, beta float64) {
	for i := len(l.columns) - 2; i >= 0; i-- {
		column := l.columns[i]
		for _, source := range column {
			var y, w float64
			for _, lk := range source.sourceLinks {
				v := lk.value * float64(lk.target.layer-source.layer)
				y += l.sourceTop(source, lk.target) * v
				w += v
			}
			if !(w > 0) {
				continue
			}
			dy := (y/w - source.y0) * alpha
			source.y0 += dy
			source.y1 += dy
			reorderNodeLinks(source)
		}
		sort.SliceStable(column, func(a, b int) bool { return column[a].y0 < column[b].y0 })
		l.resolveCollisions(column, beta)
	}
}

func (l *layouter) resolveCollisions(nodes []*node, alpha float64) {
	if len(nodes) == 0 {
		return
	}
	i := len(nodes) >> 1
	subject := nodes[i]
	l.resolveCollisionsBottomToTop(nodes, subject.y0-l.py, i-1, alpha)
	l.resolveCollisionsTopToBottom(nodes, subject.y1+l.py, i+1, alpha)
	l.resolveCollisionsBottomToTop(nodes, l.opts.Y1, len(nodes)-1, alpha)
	l.resolveCollisionsTopToBottom(nodes, l.opts.Y0, 0, alpha)
}

// resolveCollisionsTopToBottom pushes overlapping nodes down.
func (l *layouter) resolveCollisionsTopToBottom(nodes []*node, y float64, i int, alpha float64) {
	for ; i < len(nodes); i++ {
		n := nodes[i]
		if dy := (y - n.y0) * alpha; dy > 1e-6 {
			n.y0 += dy
			n.y1 += dy
		}
		y = n.y1 + l.py
	}
}

// resolveCollisionsBottomToTop pushes overlapping nodes up.
func (l *layouter) resolveCollisionsBottomToTop(nodes []*node, y float64, i int, alpha float64) {
	for ; i >= 0; i-- {
		n := nodes[i]
		if dy := (n.y1 - y) * alpha; dy > 1e-6 {
			n.y0 -= dy
			n.y1 -= dy
		}
		y = n.y0 - l.py
	}
}

// targetTop returns the target.y0 that would make the link from source to
// target perfectly horizontal.
func (l *layouter) targetTop(source, target *node) float64 {
	y := source.y0 - float64(len(source.sourceLinks)-1)*l.py/2
	for _, lk := range source.sourceLinks {
		if lk.target == target {
			break
		}
		y += lk.width + l.py
	}
	for _, lk := range target.targetLinks {
		if lk.source == source {
			break
		}
		y -= lk.width
	}
	return y
}

// sourceTop returns the source.y0 that would make the link from source to
// target perfectly horizontal.
func (l *layouter) sourceTop(source, target *node) float64 {
	y := target.y0 - float64(len(target.targetLinks)-1)*l.py/2
	for _, lk := range target.targetLinks {
		if lk.source == source {
			break
		}
		y += lk.width + l.py
	}
	for _, lk := range source.sourceLinks {
		if lk.target == target {
			break
		}
		y -= lk.width
	}
	return y
}

func byTargetBreadth(links []*link) func(a, b int) bool {
	return func(a, b int) bool {
		if links[a].target.y0 != links[b].target.y0 {
			return links[a].target.y0 < links[b].target.y0
		}
		return links[a].index < links[b].index
	}
}

func bySourceBreadth(links []*link) func(a, b int) bool {
	return func(a, b int) bool {
		if links[a].source.y0 != links[b].source.y0 {
			return links[a].source.y0 < links[b].source.y0
		}
		return links[a].index < links[b].index
	}
}

func reorderNodeLinks(n *node) {
	for _, lk := range n.targetLinks {
		out := lk.source.sourceLinks
		sort.SliceStable(out, byTargetBreadth(out))
	}
	for _, lk := range n.sourceLinks {
		in := lk.target.targetLinks
		sort.SliceStable(in, bySourceBreadth(in))
	}
}

func reorderLinks(nodes []*node) {
	for _, n := range nodes {
		sort.SliceStable(n.sourceLinks, byTargetBreadth(n.sourceLinks))
		sort.SliceStable(n.targetLinks, bySourceBreadth(n.targetLinks))
	}
}

func (l *layouter) computeLinkBreadths() {
	for _, n := range l.nodes {
		y0 := n.y0
		y1 := n.y0
		for _, lk := range n.sourceLinks {
			lk.y0 = y0 + lk.width/2
			y0 += lk.width
		}
		for _, lk := range n.targetLinks {
			lk.y1 = y1 + lk.width/2
			y1 += lk.width
		}
	}
}

func (l *layouter) graph() *Graph {
	g := &Graph{
		Nodes: make([]Node, len(l.nodes)),
		Links: make([]PlacedLink, len(l.links)),
	}
	for i, n := range l.nodes {
		out := Node{
			Name:   n.name,
			Index:  n.index,
			Value:  n.value,
			Depth:  n.depth,
			Height: n.height,
			Layer:  n.layer,
			X0:     n.x0,
			X1:     n.x1,
			Y0:     n.y0,
			Y1:     n.y1,
		}
		for _, lk := range n.sourceLinks {
			out.SourceLinks = append(out.SourceLinks, lk.index)
		}
		for _, lk := range n.targetLinks {
			out.TargetLinks = append(out.TargetLinks, lk.index)
		}
		g.Nodes[i] = out
	}
	for i, lk := range l.links {
		g.Links[i] = PlacedLink{
			Index:  lk.index,
			Source: lk.source.index,
			Target: lk.target.index,
			Value:  lk.value,
			Width:  lk.width,
			Y0:     lk.y0,
			Y1:     lk.y1,
		}
	}
	return g
}
