// Package scene is the declarative drawing plan shared by every dashboard
// host. Views derive a Scene from their state; hosts (terminal, SVG, PNG,
// browser) draw whatever the Animator says is on screen right now.
package scene

import (
	"math"
	"strings"
)

// Kind is the primitive shape of a mark.
type Kind string

const (
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindText   Kind = "text"
	KindPath   Kind = "path"
	KindLine   Kind = "line"
)

// Key identifies a mark across scenes as "layer/id". Marks with the same key
// are the same visual element; that identity drives enter/update/exit.
type Key string

// MakeKey joins a layer and an id.
func MakeKey(layer, id string) Key {
	return Key(layer + "/" + id)
}

// Layer returns the part of the key before the first slash.
func (k Key) Layer() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k[:i])
	}
	return string(k)
}

// ID returns the part of the key after the first slash.
func (k Key) ID() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k[i+1:])
	}
	return ""
}

// Attrs are the animatable and static attributes of a mark. Numeric fields
// interpolate during transitions; string fields switch immediately.
type Attrs struct {
	X, Y   float64 // rect origin, circle center, text anchor, line start
	W, H   float64
	R      float64 // circle radius or rect corner radius
	X2, Y2 float64 // line end

	Opacity       float64
	StrokeWidth   float64
	StrokeOpacity float64
	FontSize      float64
	Rotate        float64 // degrees, about (X,Y)

	Fill   string
	Stroke string
	Text   string // may contain newlines
	Anchor string // start, middle, end
	Path   string // SVG path data
}

// Mark is one drawable element.
type Mark struct {
	Key  Key
	Kind Kind
	Attrs
	// Points is the sampled center line of a path, used by raster hosts and
	// hit testing. It is not interpolated.
	Points [][2]float64
	// Interactive marks receive pointer events.
	Interactive bool
}

// Rect returns an opaque rectangle mark.
func Rect(key Key, x, y, w, h float64, fill string) Mark {
	return Mark{Key: key, Kind: KindRect, Attrs: Attrs{X: x, Y: y, W: w, H: h, Fill: fill, Opacity: 1, StrokeOpacity: 1}}
}

// Circle returns an opaque circle mark.
func Circle(key Key, cx, cy, r float64, fill string) Mark {
	return Mark{Key: key, Kind: KindCircle, Attrs: Attrs{X: cx, Y: cy, R: r, Fill: fill, Opacity: 1, StrokeOpacity: 1}}
}

// Text returns a text mark anchored at (x,y).
func Text(key Key, x, y float64, text, fill, anchor string, size float64) Mark {
	return Mark{Key: key, Kind: KindText, Attrs: Attrs{X: x, Y: y, Text: text, Fill: fill, Anchor: anchor, FontSize: size, Opacity: 1}}
}

// Line returns a stroked line mark.
func Line(key Key, x1, y1, x2, y2 float64, stroke string) Mark {
	return Mark{Key: key, Kind: KindLine, Attrs: Attrs{X: x1, Y: y1, X2: x2, Y2: y2, Stroke: stroke, StrokeWidth: 1, StrokeOpacity: 1, Opacity: 1}}
}

// Path returns a stroked, unfilled path mark.
func Path(key Key, d string, points [][2]float64, stroke string, width float64) Mark {
	return Mark{Key: key, Kind: KindPath, Points: points, Attrs: Attrs{Path: d, Stroke: stroke, StrokeWidth: width, StrokeOpacity: 1, Opacity: 1, Fill: "none"}}
}

// Scene is an ordered list of marks; later marks draw on top.
type Scene struct {
	Width      float64
	Height     float64
	Background string
	Marks      []Mark
}

// New returns an empty scene of the given size.
func New(width, height float64, background string) *Scene {
	return &Scene{Width: width, Height: height, Background: background}
}

// Add appends marks.
func (s *Scene) Add(marks ...Mark) {
	s.Marks = append(s.Marks, marks...)
}

// Get returns the mark with key k.
func (s *Scene) Get(k Key) (Mark, bool) {
	for _, m := range s.Marks {
		if m.Key == k {
			return m, true
		}
	}
	return Mark{}, false
}

// Layer returns the marks of a layer in draw order.
func (s *Scene) Layer(layer string) []Mark {
	var out []Mark
	for _, m := range s.Marks {
		if m.Key.Layer() == layer {
			out = append(out, m)
		}
	}
	return out
}

// Keys returns the keys in draw order.
func (s *Scene) Keys() []Key {
	out := make([]Key, len(s.Marks))
	for i, m := range s.Marks {
		out[i] = m.Key
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Scene) Clone() *Scene {
	c := &Scene{Width: s.Width, Height: s.Height, Background: s.Background}
	c.Marks = make([]Mark, len(s.Marks))
	for i, m := range s.Marks {
		c.Marks[i] = m
		if m.Points != nil {
			c.Marks[i].Points = append([][2]float64(nil), m.Points...)
		}
	}
	return c
}

// HitTest returns the topmost interactive mark under (x,y), optionally
// restricted to the given layers.
func (s *Scene) HitTest(x, y float64, layers ...string) (Mark, bool) {
	for i := len(s.Marks) - 1; i >= 0; i-- {
		m := s.Marks[i]
		if !m.Interactive {
			continue
		}
		if len(layers) > 0 && !contains(layers, m.Key.Layer()) {
			continue
		}
		if m.Contains(x, y) {
			return m, true
		}
	}
	return Mark{}, false
}

// Contains reports whether (x,y) lies on the mark.
func (m Mark) Contains(x, y float64) bool {
	switch m.Kind {
	case KindRect:
		return x >= m.X && x <= m.X+m.W && y >= m.Y && y <= m.Y+m.H
	case KindCircle:
		return math.Hypot(x-m.X, y-m.Y) <= math.Max(m.R, 1)
	case KindPath:
		half := math.Max(m.StrokeWidth/2, 2)
		for i := 1; i < len(m.Points); i++ {
			if segmentDistance(x, y, m.Points[i-1], m.Points[i]) <= half {
				return true
			}
		}
	}
	return false
}

func segmentDistance(x, y float64, a, b [2]float64) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(x-a[0], y-a[1])
	}
	t := ((x-a[0])*dx + (y-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(x-(a[0]+t*dx), y-(a[1]+t*dy))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Bounds is a normalized axis-aligned rectangle (X0<=X1, Y0<=Y1).
type Bounds struct {
	X0, Y0, X1, Y1 float64
}

// NewBounds normalizes two corners into Bounds.
func NewBounds(ax, ay, bx, by float64) Bounds {
	return Bounds{
		X0: math.Min(ax, bx),
		Y0: math.Min(ay, by),
		X1: math.Max(ax, bx),
		Y1: math.Max(ay, by),
	}
}

// Empty reports whether the rectangle has zero area.
func (b Bounds) Empty() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// Contains reports whether (x,y) lies inside, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// Clamp restricts (x,y) to the rectangle.
func (b Bounds) Clamp(x, y float64) (float64, float64) {
	return math.Max(b.X0, math.Min(b.X1, x)), math.Max(b.Y0, math.Min(b.Y1, y))
}
