package dashboard

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func surveyTable() *model.Table {
	return model.NewTable([]model.Record{
		{Genre: "Rock", Effect: model.EffectImprove, Hours: 2, Depression: 6, Anxiety: 4},
		{Genre: "Rock", Effect: model.EffectWorsen, Hours: 4, Depression: 8, Anxiety: 7},
		{Genre: "Jazz", Effect: model.EffectNoEffect, Hours: 1, Depression: 5, Anxiety: 3},
		{Genre: "Jazz", Effect: model.EffectImprove, Hours: 3, Depression: 3, Anxiety: 2},
	})
}

func testOptions() Options {
	o := DefaultOptions()
	o.Clock = func() time.Time { return epoch }
	return o
}

type recordingHost struct {
	mounts   map[string]bool
	attached []string
}

func (h *recordingHost) Lookup(id string) (Mount, bool) {
	if !h.mounts[id] {
		return nil, false
	}
	return MountFunc(func(id string, _ View) { h.attached = append(h.attached, id) }), true
}

func TestBindFixedOrder(t *testing.T) {
	h := &recordingHost{mounts: map[string]bool{MountSankey: true, MountBar: true, MountScatter: true}}
	d, err := Bind(h, surveyTable(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(h.attached, Mounts) {
		t.Fatalf("attach order = %v, want %v", h.attached, Mounts)
	}
	if d.Bar == nil || d.Scatter == nil || d.Sankey == nil {
		t.Fatal("views not constructed")
	}
}

func TestBindMissingMount(t *testing.T) {
	h := &recordingHost{mounts: map[string]bool{MountBar: true, MountSankey: true}}
	_, err := Bind(h, surveyTable(), testOptions())
	if !errors.Is(err, ErrMissingMount) {
		t.Fatalf("err = %v, want ErrMissingMount", err)
	}
	if len(h.attached) != 0 {
		t.Errorf("views attached before the missing mount was found: %v", h.attached)
	}
}

func TestBindNilTableRendersEmpty(t *testing.T) {
	d, err := Bind(AllMounts(), nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	f, _ := d.Frame(MountSankey, epoch)
	if len(f.Marks) != 0 {
		t.Fatalf("empty sankey drew %d marks", len(f.Marks))
	}
}

func TestDispatchSelectAndPointer(t *testing.T) {
	d, err := Bind(AllMounts(), surveyTable(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	changed, err := d.Dispatch(Select(MountBar, chart.BarControlSort, "descending"))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if got := d.Bar.Order(); !reflect.DeepEqual(got, []string{"Rock", "Jazz"}) {
		t.Fatalf("order = %v", got)
	}
	if !d.Active(epoch.Add(500 * time.Millisecond)) {
		t.Error("sort should animate")
	}

	sc := d.Bar.Scene()
	rock, _ := sc.Get(chart.BarKey("Rock"))
	d.Dispatch(PointerAt(MountBar, chart.PointerClick, rock.X+1, rock.Y+1))
	if got := d.Bar.Selected(); !reflect.DeepEqual(got, []string{"Rock"}) {
		t.Fatalf("selected = %v", got)
	}

	if _, err := d.Dispatch(Select(MountScatter, chart.ScatterControlGenre, "Polka")); err == nil {
		t.Error("expected an error for an unknown genre")
	}
	if _, err := d.Dispatch(Select("nowhere", "x")); !errors.Is(err, ErrUnknownMount) {
		t.Errorf("err = %v, want ErrUnknownMount", err)
	}
}

func TestBasicModeIgnoresInput(t *testing.T) {
	o := testOptions()
	o.Basic = true
	d, err := Bind(AllMounts(), surveyTable(), o)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Controls(MountBar)) != 0 {
		t.Error("basic mode exposes controls")
	}
	changed, err := d.Dispatch(Select(MountBar, chart.BarControlSort, "descending"))
	if err != nil || changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if d.Active(epoch) {
		t.Error("basic mode animates")
	}
}

func TestRunSerializesEventsAndPushesFrames(t *testing.T) {
	o := testOptions()
	var updates []Update
	o.OnUpdate = func(u Update) { updates = append(updates, u) }
	d, err := Bind(AllMounts(), surveyTable(), o)
	if err != nil {
		t.Fatal(err)
	}
	d.Settle()

	events := make(chan Event, 4)
	events <- Tick(epoch.Add(5 * time.Second))
	sel := Select(MountSankey, chart.SankeyControlGenre, "Jazz")
	sel.At = epoch.Add(5 * time.Second)
	events <- sel
	events <- Tick(epoch.Add(10 * time.Second))
	close(events)

	if err := d.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if flows := d.Sankey.Flows(); len(flows) != 2 {
		t.Fatalf("flows = %v", flows)
	}
	var last Update
	for _, u := range updates {
		if u.Mount == MountSankey {
			last = u
		}
	}
	if last.Frame == nil || last.Active {
		t.Fatalf("last sankey update = %+v", last)
	}
	if n := len(last.Frame.Layer("link")); n != 2 {
		t.Errorf("final frame has %d links, want 2", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d, err := Bind(AllMounts(), surveyTable(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx, make(chan Event)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
