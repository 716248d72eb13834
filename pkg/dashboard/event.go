package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/debug"
)

// EventKind enumerates input events.
type EventKind int

const (
	// EventSelect is a select-control change.
	EventSelect EventKind = iota
	// EventPointer is pointer input over a mount's surface.
	EventPointer
	// EventTick is an animation frame callback.
	EventTick
)

func (k EventKind) String() string {
	switch k {
	case EventSelect:
		return "select"
	case EventPointer:
		return "pointer"
	case EventTick:
		return "tick"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one serialized input.
type Event struct {
	Kind    EventKind
	Mount   string
	Control string
	Values  []string
	Pointer chart.Pointer
	// At is the event time; zero means the dashboard clock.
	At time.Time
}

// Select builds a select-change event.
func Select(mount, control string, values ...string) Event {
	return Event{Kind: EventSelect, Mount: mount, Control: control, Values: values}
}

// PointerAt builds a pointer event.
func PointerAt(mount string, kind chart.PointerKind, x, y float64) Event {
	return Event{Kind: EventPointer, Mount: mount, Pointer: chart.Pointer{Kind: kind, X: x, Y: y}}
}

// Tick builds an animation frame event.
func Tick(at time.Time) Event {
	return Event{Kind: EventTick, At: at}
}

// Run is the dashboard's event loop. It processes events one at a time until
// ctx is done or events is closed, pushing frames of changed or animating
// mounts to Options.OnUpdate. Event errors are logged and do not stop the
// loop.
func (d *Dashboard) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := d.Dispatch(ev); err != nil {
				debug.Log("dashboard: %v", err)
			}
			d.flush(d.now(ev))
		}
	}
}

// flush pushes a frame for every dirty mount. A mount stays dirty while it
// animates so that its final frame is delivered too.
func (d *Dashboard) flush(now time.Time) {
	if d.opts.OnUpdate == nil {
		return
	}
	for _, id := range Mounts {
		if !d.dirty[id] {
			continue
		}
		a := d.anim[id]
		active := a.Active(now)
		d.opts.OnUpdate(Update{
			Mount:    id,
			Frame:    a.Frame(now),
			Controls: d.views[id].Controls(),
			Active:   active,
		})
		if !active {
			d.dirty[id] = false
		}
	}
}
