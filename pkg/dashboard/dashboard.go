// Package dashboard binds the three chart views to a host's mount points
// and serializes every input event through a single event loop.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/sankey"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// Mount point identifiers, in construction order.
const (
	MountBar     = "bar-chart"
	MountScatter = "scatter-plot"
	MountSankey  = "sankey-diagram"
)

// Mounts lists the mount points in the order views are constructed.
var Mounts = []string{MountBar, MountScatter, MountSankey}

// ErrMissingMount is returned by Bind when the host lacks a mount point.
var ErrMissingMount = errors.New("missing mount point")

// ErrUnknownMount is returned for events addressed to no mount.
var ErrUnknownMount = errors.New("unknown mount")

// View is what the dashboard needs from a chart view.
type View interface {
	Scene() *scene.Scene
	Plan() scene.Plan
	Controls() []chart.Control
	SetControl(id string, values []string) error
	HandlePointer(p chart.Pointer) bool
	SetInteractive(on bool)
}

// Mount is a host container that receives one view.
type Mount interface {
	Attach(id string, v View)
}

// Host locates mount points by id.
type Host interface {
	Lookup(id string) (Mount, bool)
}

// MountFunc adapts a function to Mount.
type MountFunc func(id string, v View)

// Attach calls f.
func (f MountFunc) Attach(id string, v View) { f(id, v) }

// StaticHost provides every listed mount and ignores attachment. Export and
// tests use it.
type StaticHost []string

// Lookup implements Host.
func (h StaticHost) Lookup(id string) (Mount, bool) {
	for _, m := range h {
		if m == id {
			return MountFunc(func(string, View) {}), true
		}
	}
	return nil, false
}

// AllMounts is a StaticHost with the three standard mounts.
func AllMounts() StaticHost {
	return StaticHost(append([]string(nil), Mounts...))
}

// Options configures Bind.
type Options struct {
	// Basic disables controls, selection, brush and tooltips.
	Basic      bool
	Bar        chart.Geometry
	Scatter    chart.Geometry
	Sankey     chart.Geometry
	Layout     sankey.Options
	BrushScope chart.BrushScope
	// Speed scales transition durations; 0 disables animation.
	Speed float64
	// Clock supplies event times when an event carries none.
	Clock func() time.Time
	// OnUpdate receives a fresh frame whenever Run changes a mount.
	OnUpdate func(Update)
}

// DefaultOptions returns the interactive dashboard at its standard sizes.
func DefaultOptions() Options {
	sk := chart.SankeyGeometry()
	return Options{
		Bar:     chart.BarGeometry(),
		Scatter: chart.ScatterGeometry(),
		Sankey:  sk,
		Layout:  sankey.DefaultOptions(sk.Width, sk.Height),
		Speed:   1,
		Clock:   time.Now,
	}
}

// Update is a frame pushed to the host by Run.
type Update struct {
	Mount    string
	Frame    *scene.Scene
	Controls []chart.Control
	Active   bool
}

// Dashboard owns the three views and their animators.
type Dashboard struct {
	table   *model.Table
	opts    Options
	Bar     *chart.BarView
	Scatter *chart.ScatterView
	Sankey  *chart.SankeyView

	views map[string]View
	anim  map[string]*scene.Animator
	dirty map[string]bool
}

// Bind looks up the three mount points in fixed order, constructs the views
// and attaches them. A missing mount is reported before anything is built.
func Bind(host Host, t *model.Table, opts Options) (*Dashboard, error) {
	defer debug.LogEnterExit("dashboard.Bind")()
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	mounts := make(map[string]Mount, len(Mounts))
	for _, id := range Mounts {
		m, ok := host.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("bind %q: %w", id, ErrMissingMount)
		}
		mounts[id] = m
	}
	if t == nil {
		t = model.Empty()
	}
	if t.Len() == 0 {
		debug.Log("dashboard: %v", model.ErrEmpty)
	}

	d := &Dashboard{
		table: t,
		opts:  opts,
		views: make(map[string]View, len(Mounts)),
		anim:  make(map[string]*scene.Animator, len(Mounts)),
		dirty: make(map[string]bool, len(Mounts)),
	}
	now := opts.Clock()
	for _, id := range Mounts {
		var v View
		switch id {
		case MountBar:
			d.Bar = chart.NewBarView(t, opts.Bar)
			v = d.Bar
		case MountScatter:
			d.Scatter = chart.NewScatterView(t, opts.Scatter)
			d.Scatter.SetScope(opts.BrushScope)
			v = d.Scatter
		case MountSankey:
			d.Sankey = chart.NewSankeyView(t, opts.Sankey, opts.Layout)
			v = d.Sankey
		}
		v.SetInteractive(!opts.Basic)
		a := scene.NewAnimator()
		a.Speed = opts.Speed
		if opts.Basic {
			a.Speed = 0
		}
		a.Apply(v.Scene(), v.Plan(), now)
		d.views[id] = v
		d.anim[id] = a
		d.dirty[id] = true
		mounts[id].Attach(id, v)
		debug.Log("dashboard: mounted %s", id)
	}
	return d, nil
}

// Table returns the shared record table.
func (d *Dashboard) Table() *model.Table {
	return d.table
}

// Basic reports whether the dashboard runs without interaction.
func (d *Dashboard) Basic() bool {
	return d.opts.Basic
}

// View returns the view bound to mount.
func (d *Dashboard) View(mount string) (View, bool) {
	v, ok := d.views[mount]
	return v, ok
}

// Controls returns the inline controls of mount.
func (d *Dashboard) Controls(mount string) []chart.Control {
	if v, ok := d.views[mount]; ok {
		return v.Controls()
	}
	return nil
}

// Frame returns the animated picture of mount at now.
func (d *Dashboard) Frame(mount string, now time.Time) (*scene.Scene, error) {
	a, ok := d.anim[mount]
	if !ok {
		return nil, fmt.Errorf("frame %q: %w", mount, ErrUnknownMount)
	}
	defer metrics.Timer(metrics.FrameRender)()
	return a.Frame(now), nil
}

// Active reports whether any mount is still animating at now.
func (d *Dashboard) Active(now time.Time) bool {
	for _, a := range d.anim {
		if a.Active(now) {
			return true
		}
	}
	return false
}

// Settle finishes every running transition.
func (d *Dashboard) Settle() {
	for _, a := range d.anim {
		a.Settle()
	}
}

func (d *Dashboard) now(ev Event) time.Time {
	if !ev.At.IsZero() {
		return ev.At
	}
	return d.opts.Clock()
}

// Dispatch routes one event to the owning view and runs it to completion,
// including scheduling its transitions. It reports whether the view's state
// changed.
func (d *Dashboard) Dispatch(ev Event) (bool, error) {
	if ev.Kind == EventTick {
		return d.Active(d.now(ev)), nil
	}
	v, ok := d.views[ev.Mount]
	if !ok {
		return false, fmt.Errorf("dispatch %s: %q: %w", ev.Kind, ev.Mount, ErrUnknownMount)
	}
	if d.opts.Basic {
		return false, nil
	}
	var changed bool
	switch ev.Kind {
	case EventSelect:
		if err := v.SetControl(ev.Control, ev.Values); err != nil {
			return false, fmt.Errorf("dispatch select on %s: %w", ev.Mount, err)
		}
		changed = true
	case EventPointer:
		changed = v.HandlePointer(ev.Pointer)
	default:
		return false, fmt.Errorf("dispatch: unsupported event kind %d", ev.Kind)
	}
	if changed {
		d.anim[ev.Mount].Apply(v.Scene(), v.Plan(), d.now(ev))
		d.dirty[ev.Mount] = true
	}
	return changed, nil
}
