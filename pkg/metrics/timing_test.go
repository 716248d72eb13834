package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordStats(t *testing.T) {
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("count = %d", s.Count)
	}
	if s.AvgMs != 3 || s.MaxMs != 4 || s.MinMs != 2 {
		t.Errorf("stats = %+v", s)
	}
	m.Reset()
	if m.Count() != 0 {
		t.Error("reset did not clear count")
	}
}

func TestRecordConcurrent(t *testing.T) {
	m := newTimingMetric("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(time.Microsecond)
			}
		}()
	}
	wg.Wait()
	if m.Count() != 800 {
		t.Fatalf("count = %d, want 800", m.Count())
	}
}

func TestDisabledTimerIsNoop(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)
	m := newTimingMetric("off")
	Timer(m)()
	if m.Count() != 0 {
		t.Fatal("disabled timer recorded")
	}
}

func TestAllStatsSkipsIdleMetrics(t *testing.T) {
	ResetAll()
	defer ResetAll()
	DataLoad.Record(time.Millisecond)

	stats := AllStats()
	if len(stats) != 1 || stats[0].Name != "data_load" {
		t.Fatalf("stats = %+v", stats)
	}
	ResetAll()
	if got := AllStats(); len(got) != 0 {
		t.Errorf("after reset: %+v", got)
	}
}
