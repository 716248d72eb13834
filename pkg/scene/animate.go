package scene

import (
	"time"
)

// Transition describes how the marks of one layer animate.
// A zero duration (or nil start/end function) means the change is immediate.
type Transition struct {
	Enter  time.Duration
	Update time.Duration
	Exit   time.Duration

	// EnterFrom returns the attributes an entering mark starts from.
	EnterFrom func(Mark) Attrs
	// ExitTo returns the attributes an exiting mark fades to before removal.
	ExitTo func(Mark) Attrs
}

// Plan maps a layer name to its transition. Layers without an entry change
// immediately.
type Plan map[string]Transition

type tween struct {
	mark    Mark // kind, key and the target attributes
	from    Attrs
	start   time.Time
	dur     time.Duration
	exiting bool
}

func (tw *tween) at(now time.Time, ease func(float64) float64) Attrs {
	if tw.dur <= 0 || !now.Before(tw.start.Add(tw.dur)) {
		return tw.mark.Attrs
	}
	t := float64(now.Sub(tw.start)) / float64(tw.dur)
	if t < 0 {
		t = 0
	}
	return Interpolate(tw.from, tw.mark.Attrs, ease(t))
}

func (tw *tween) done(now time.Time) bool {
	return tw.dur <= 0 || !now.Before(tw.start.Add(tw.dur))
}

// Animator keeps the on-screen state of one mount. Apply starts transitions
// toward a new target scene; Frame samples the current picture.
//
// A later Apply interrupts running tweens: each mark restarts from its
// current interpolated attributes, so the later transition wins.
type Animator struct {
	width, height float64
	background    string

	live  map[Key]*tween
	order []Key

	// Speed scales every duration; 0 makes all changes immediate.
	Speed float64
	Ease  func(float64) float64
}

// NewAnimator returns an animator with nothing on screen.
func NewAnimator() *Animator {
	return &Animator{
		live:  make(map[Key]*tween),
		Speed: 1,
		Ease:  CubicInOut,
	}
}

func (a *Animator) scaled(d time.Duration) time.Duration {
	if a.Speed <= 0 {
		return 0
	}
	return time.Duration(float64(d) * a.Speed)
}

// Apply sets next as the target picture using plan and returns the keyed
// join against what is currently on screen (exiting marks included).
func (a *Animator) Apply(next *Scene, plan Plan, now time.Time) Diff {
	var d Diff
	a.width, a.height, a.background = next.Width, next.Height, next.Background

	inNext := make(map[Key]bool, len(next.Marks))
	for _, m := range next.Marks {
		inNext[m.Key] = true
		tr := plan[m.Key.Layer()]
		if tw, ok := a.live[m.Key]; ok {
			d.Update = append(d.Update, m.Key)
			cur := tw.at(now, a.Ease)
			dur := a.scaled(tr.Update)
			if tw.exiting {
				// Re-entering before the exit finished.
				dur = a.scaled(maxDuration(tr.Update, tr.Enter))
			}
			if dur > 0 && cur != m.Attrs {
				a.live[m.Key] = &tween{mark: m, from: cur, start: now, dur: dur}
			} else {
				a.live[m.Key] = &tween{mark: m, from: m.Attrs}
			}
			continue
		}
		d.Enter = append(d.Enter, m.Key)
		dur := a.scaled(tr.Enter)
		if tr.EnterFrom != nil && dur > 0 {
			a.live[m.Key] = &tween{mark: m, from: tr.EnterFrom(m), start: now, dur: dur}
		} else {
			a.live[m.Key] = &tween{mark: m, from: m.Attrs}
		}
	}

	anchor := make(map[Key][]Key)
	var head []Key
	var last Key
	haveLast := false
	for _, k := range a.order {
		if inNext[k] {
			last, haveLast = k, true
			continue
		}
		tw := a.live[k]
		if tw == nil {
			continue
		}
		tr := plan[k.Layer()]
		if !tw.exiting {
			d.Exit = append(d.Exit, k)
			dur := a.scaled(tr.Exit)
			if tr.ExitTo == nil || dur <= 0 {
				delete(a.live, k)
				continue
			}
			cur := tw.mark
			cur.Attrs = tw.at(now, a.Ease)
			end := cur
			end.Attrs = tr.ExitTo(cur)
			a.live[k] = &tween{mark: end, from: cur.Attrs, start: now, dur: dur, exiting: true}
		}
		if haveLast {
			anchor[last] = append(anchor[last], k)
		} else {
			head = append(head, k)
		}
	}

	order := make([]Key, 0, len(next.Marks)+len(head))
	order = append(order, head...)
	for _, m := range next.Marks {
		order = append(order, m.Key)
		order = append(order, anchor[m.Key]...)
	}
	a.order = order
	return d
}

// Frame returns the picture at now and drops exiting marks whose fade has
// finished.
func (a *Animator) Frame(now time.Time) *Scene {
	s := New(a.width, a.height, a.background)
	kept := a.order[:0]
	for _, k := range a.order {
		tw := a.live[k]
		if tw == nil {
			continue
		}
		if tw.exiting && tw.done(now) {
			delete(a.live, k)
			continue
		}
		kept = append(kept, k)
		m := tw.mark
		m.Attrs = tw.at(now, a.Ease)
		if tw.exiting {
			m.Interactive = false
		}
		s.Marks = append(s.Marks, m)
	}
	a.order = kept
	return s
}

// Active reports whether any tween is still running at now.
func (a *Animator) Active(now time.Time) bool {
	for _, tw := range a.live {
		if !tw.done(now) {
			return true
		}
	}
	return false
}

// Len is the number of marks currently tracked, exiting ones included.
func (a *Animator) Len() int {
	return len(a.live)
}

// Settle jumps every tween to its end state.
func (a *Animator) Settle() {
	for k, tw := range a.live {
		if tw.exiting {
			delete(a.live, k)
			continue
		}
		tw.from = tw.mark.Attrs
		tw.dur = 0
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// CubicInOut is the default easing curve.
func CubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

// Linear easing.
func Linear(t float64) float64 { return t }

// Interpolate blends the numeric attributes of a and b at t in [0,1]. String
// attributes take b's value.
func Interpolate(a, b Attrs, t float64) Attrs {
	lerp := func(x, y float64) float64 { return x + (y-x)*t }
	out := b
	out.X = lerp(a.X, b.X)
	out.Y = lerp(a.Y, b.Y)
	out.W = lerp(a.W, b.W)
	out.H = lerp(a.H, b.H)
	out.R = lerp(a.R, b.R)
	out.X2 = lerp(a.X2, b.X2)
	out.Y2 = lerp(a.Y2, b.Y2)
	out.Opacity = lerp(a.Opacity, b.Opacity)
	out.StrokeWidth = lerp(a.StrokeWidth, b.StrokeWidth)
	out.StrokeOpacity = lerp(a.StrokeOpacity, b.StrokeOpacity)
	out.FontSize = lerp(a.FontSize, b.FontSize)
	out.Rotate = lerp(a.Rotate, b.Rotate)
	return out
}
