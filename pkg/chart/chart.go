// Package chart implements the three coordinated dashboard views: the
// genre-mean bar chart, the hours-vs-depression scatter plot and the
// genre-to-effect Sankey diagram.
//
// Every view owns an explicit state record. Operations mutate that state and
// Scene derives a declarative drawing plan from (table, state); the host's
// scene.Animator turns consecutive plans into transitions. Views are not safe
// for concurrent use: the dashboard event loop serializes all calls.
package chart

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/mxmh/pkg/model"
)

// Shared styling.
const (
	TextColor       = "#C3B7F7"
	Background      = "black"
	TooltipFill     = "#333"
	NodeStroke      = "#222"
	labelFontSize   = 12
	tickFontSize    = 10
	titleFontSize   = 15
	tooltipFontSize = 12
)

// ErrUnknownControl is returned when a control id does not belong to a view.
var ErrUnknownControl = errors.New("unknown control")

// ErrUnknownOption is returned when a control value is not one of its options.
var ErrUnknownOption = errors.New("unknown control option")

// Margin is the space between the surface edge and the plot area.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// Geometry is the drawing surface size of a view.
type Geometry struct {
	Width  float64
	Height float64
	Margin Margin
}

// BarGeometry is the default bar chart surface.
func BarGeometry() Geometry {
	return Geometry{Width: 450, Height: 280, Margin: Margin{Top: 35, Right: 15, Bottom: 75, Left: 45}}
}

// ScatterGeometry is the default scatter plot surface.
func ScatterGeometry() Geometry {
	return Geometry{Width: 450, Height: 280, Margin: Margin{Top: 35, Right: 15, Bottom: 50, Left: 45}}
}

// SankeyGeometry is the default Sankey surface. The layout extent supplies
// its own inset.
func SankeyGeometry() Geometry {
	return Geometry{Width: 1000, Height: 600}
}

// Option is one choice of a select control.
type Option struct {
	Value string
	Label string
}

// Control describes an inline select control of a view.
type Control struct {
	ID       string
	Label    string
	Options  []Option
	Selected []string
	Multiple bool
}

// Has reports whether value is one of the control's options.
func (c Control) Has(value string) bool {
	for _, o := range c.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// IsSelected reports whether value is currently selected.
func (c Control) IsSelected(value string) bool {
	for _, s := range c.Selected {
		if s == value {
			return true
		}
	}
	return false
}

// PointerKind enumerates pointer input.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerLeave
	PointerDown
	PointerUp
	PointerClick
)

func (k PointerKind) String() string {
	switch k {
	case PointerMove:
		return "move"
	case PointerLeave:
		return "leave"
	case PointerDown:
		return "down"
	case PointerUp:
		return "up"
	case PointerClick:
		return "click"
	default:
		return "unknown"
	}
}

// Pointer is a pointer event in surface coordinates.
type Pointer struct {
	Kind PointerKind
	X, Y float64
}

func genreOptions(t *model.Table) []Option {
	opts := []Option{{Value: model.AllLabel, Label: model.AllLabel}}
	for _, g := range t.Genres() {
		opts = append(opts, Option{Value: g, Label: g})
	}
	return opts
}

// mean is the arithmetic mean of the finite values, or NaN when there are
// none.
func mean(values []float64) float64 {
	finite := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}

func sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}
