package scene

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fadePlan() Plan {
	return Plan{
		"dot": {
			Enter:  600 * time.Millisecond,
			Update: 600 * time.Millisecond,
			Exit:   300 * time.Millisecond,
			EnterFrom: func(m Mark) Attrs {
				a := m.Attrs
				a.R, a.Opacity = 0, 0
				return a
			},
			ExitTo: func(m Mark) Attrs {
				a := m.Attrs
				a.R, a.Opacity = 0, 0
				return a
			},
		},
	}
}

func dots(xs ...float64) *Scene {
	s := New(100, 100, "black")
	for i, x := range xs {
		m := Circle(MakeKey("dot", string(rune('a'+i))), x, 10, 4, "red")
		m.Opacity = 0.8
		s.Add(m)
	}
	return s
}

func TestKeyParts(t *testing.T) {
	k := MakeKey("link", "Rock/Improve")
	if k.Layer() != "link" || k.ID() != "Rock/Improve" {
		t.Fatalf("got layer %q id %q", k.Layer(), k.ID())
	}
}

func TestReconcile(t *testing.T) {
	prev := dots(1, 2)
	next := New(100, 100, "")
	next.Add(prev.Marks[1], Circle(MakeKey("dot", "z"), 5, 5, 4, "blue"))

	d := Reconcile(prev, next)
	if len(d.Enter) != 1 || d.Enter[0] != MakeKey("dot", "z") {
		t.Errorf("enter = %v", d.Enter)
	}
	if len(d.Update) != 1 || d.Update[0] != MakeKey("dot", "b") {
		t.Errorf("update = %v", d.Update)
	}
	if len(d.Exit) != 1 || d.Exit[0] != MakeKey("dot", "a") {
		t.Errorf("exit = %v", d.Exit)
	}
	if d := Reconcile(nil, nil); !d.Empty() {
		t.Errorf("nil reconcile not empty: %+v", d)
	}
}

func TestAnimatorEnterGrowsFromZero(t *testing.T) {
	a := NewAnimator()
	a.Apply(dots(10), fadePlan(), t0)

	m := a.Frame(t0).Marks[0]
	if m.R != 0 || m.Opacity != 0 {
		t.Fatalf("entering mark should start at r=0 opacity=0, got r=%v op=%v", m.R, m.Opacity)
	}
	mid := a.Frame(t0.Add(300 * time.Millisecond)).Marks[0]
	if math.Abs(mid.R-2) > 1e-9 {
		t.Errorf("midpoint radius = %v, want 2", mid.R)
	}
	end := a.Frame(t0.Add(600 * time.Millisecond)).Marks[0]
	if end.R != 4 || end.Opacity != 0.8 {
		t.Errorf("end = r %v op %v", end.R, end.Opacity)
	}
	if a.Active(t0.Add(600 * time.Millisecond)) {
		t.Error("animator still active after the transition ended")
	}
}

func TestAnimatorExitRemovesMarks(t *testing.T) {
	a := NewAnimator()
	plan := fadePlan()
	a.Apply(dots(10, 20, 30), plan, t0)
	a.Settle()

	d := a.Apply(dots(10), plan, t0)
	if len(d.Exit) != 2 {
		t.Fatalf("exit = %v", d.Exit)
	}
	if got := len(a.Frame(t0.Add(100 * time.Millisecond)).Marks); got != 3 {
		t.Fatalf("exiting marks should still draw during the fade, got %d", got)
	}
	if got := len(a.Frame(t0.Add(300 * time.Millisecond)).Marks); got != 1 {
		t.Fatalf("got %d marks after exit, want 1", got)
	}
	if a.Len() != 1 {
		t.Fatalf("animator tracks %d marks, want 1", a.Len())
	}
}

func TestAnimatorRepeatedRebuildsDoNotLeak(t *testing.T) {
	a := NewAnimator()
	plan := fadePlan()
	now := t0
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			a.Apply(dots(1, 2, 3, 4), plan, now)
		} else {
			a.Apply(dots(1), plan, now)
		}
		now = now.Add(50 * time.Millisecond)
		a.Frame(now)
	}
	now = now.Add(time.Second)
	a.Frame(now)
	if a.Len() != 1 {
		t.Fatalf("animator tracks %d marks after settling, want 1", a.Len())
	}
}

func TestAnimatorInterruptStartsFromCurrent(t *testing.T) {
	a := NewAnimator()
	plan := fadePlan()
	a.Apply(dots(0), plan, t0)
	a.Settle()

	a.Apply(dots(100), plan, t0)
	half := t0.Add(300 * time.Millisecond)
	cur := a.Frame(half).Marks[0].X
	if cur <= 0 || cur >= 100 {
		t.Fatalf("x mid-transition = %v", cur)
	}

	// Retarget back to 0 halfway through: the new tween starts where the
	// mark is now, not where the old one started or ended.
	a.Apply(dots(0), plan, half)
	if got := a.Frame(half).Marks[0].X; math.Abs(got-cur) > 1e-9 {
		t.Fatalf("interrupted tween jumped from %v to %v", cur, got)
	}
	if got := a.Frame(half.Add(600 * time.Millisecond)).Marks[0].X; got != 0 {
		t.Fatalf("later transition should win, x = %v", got)
	}
}

func TestAnimatorReentryCancelsExit(t *testing.T) {
	a := NewAnimator()
	plan := fadePlan()
	a.Apply(dots(10, 20), plan, t0)
	a.Settle()
	a.Apply(dots(10), plan, t0)
	a.Apply(dots(10, 20), plan, t0.Add(100*time.Millisecond))

	s := a.Frame(t0.Add(2 * time.Second))
	if len(s.Marks) != 2 {
		t.Fatalf("got %d marks, want 2", len(s.Marks))
	}
	if m, _ := s.Get(MakeKey("dot", "b")); m.R != 4 {
		t.Fatalf("re-entered mark radius = %v", m.R)
	}
}

func TestAnimatorKeepsExitingMarkInPlace(t *testing.T) {
	a := NewAnimator()
	plan := fadePlan()
	first := dots(1, 2, 3)
	first.Add(Text(MakeKey("tooltip", "text"), 0, 0, "hi", "white", "start", 12))
	a.Apply(first, plan, t0)
	a.Settle()

	next := dots(1, 2)
	next.Add(Text(MakeKey("tooltip", "text"), 0, 0, "hi", "white", "start", 12))
	a.Apply(next, plan, t0)
	keys := a.Frame(t0).Keys()
	want := []Key{"dot/a", "dot/b", "dot/c", "tooltip/text"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestZeroSpeedIsImmediate(t *testing.T) {
	a := NewAnimator()
	a.Speed = 0
	a.Apply(dots(10), fadePlan(), t0)
	if m := a.Frame(t0).Marks[0]; m.R != 4 {
		t.Fatalf("r = %v", m.R)
	}
	a.Apply(dots(), fadePlan(), t0)
	if n := len(a.Frame(t0).Marks); n != 0 {
		t.Fatalf("exit with zero speed left %d marks", n)
	}
}

func TestCubicInOut(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{0, 0}, {0.5, 0.5}, {1, 1}, {0.25, 0.0625},
	} {
		if got := CubicInOut(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("CubicInOut(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHitTest(t *testing.T) {
	s := New(100, 100, "")
	r := Rect(MakeKey("bar", "Rock"), 10, 10, 20, 50, "red")
	r.Interactive = true
	p := Path(MakeKey("link", "a"), "", [][2]float64{{0, 80}, {100, 80}}, "gray", 10)
	p.Interactive = true
	s.Add(r, p, Rect(MakeKey("bg", "x"), 0, 0, 100, 100, "black"))

	if m, ok := s.HitTest(15, 20); !ok || m.Key != r.Key {
		t.Errorf("hit bar: %v %v", m.Key, ok)
	}
	if m, ok := s.HitTest(50, 83); !ok || m.Key != p.Key {
		t.Errorf("hit link: %v %v", m.Key, ok)
	}
	if _, ok := s.HitTest(50, 40); ok {
		t.Error("background is not interactive")
	}
	if _, ok := s.HitTest(15, 20, "link"); ok {
		t.Error("layer filter ignored")
	}
}

func TestBounds(t *testing.T) {
	b := NewBounds(50, 40, 10, 5)
	if b.X0 != 10 || b.Y0 != 5 || b.X1 != 50 || b.Y1 != 40 {
		t.Fatalf("not normalized: %+v", b)
	}
	if !NewBounds(3, 3, 3, 9).Empty() {
		t.Error("zero-width rectangle should be empty")
	}
	if x, y := b.Clamp(0, 100); x != 10 || y != 40 {
		t.Errorf("clamp = %v,%v", x, y)
	}
}
