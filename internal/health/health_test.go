package health

import "testing"

func TestCountersIncrementAndSnapshot(t *testing.T) {
	m := New(nil, nil)
	m.Counters().IncResolveCalls()
	m.Counters().IncResolveCalls()
	m.Counters().IncFallback()
	m.Counters().IncAction("continued")
	m.Counters().IncAction("branched")

	snap := m.Snapshot()
	if snap.ResolveCalls != 2 {
		t.Errorf("expected 2 resolve calls, got %d", snap.ResolveCalls)
	}
	if snap.FallbackCount != 1 {
		t.Errorf("expected 1 fallback, got %d", snap.FallbackCount)
	}
	if snap.ActionCounts["continued"] != 1 || snap.ActionCounts["branched"] != 1 {
		t.Errorf("unexpected action counts: %+v", snap.ActionCounts)
	}
}

func TestHealthyWithNoCalls(t *testing.T) {
	m := New(nil, nil)
	if !m.Healthy() {
		t.Error("expected healthy with zero calls")
	}
}

func TestUnhealthyWhenTimeoutsDominate(t *testing.T) {
	m := New(nil, nil)
	for i := 0; i < 10; i++ {
		m.Counters().IncResolveCalls()
	}
	for i := 0; i < 6; i++ {
		m.Counters().IncTimeout()
	}
	if m.Healthy() {
		t.Error("expected unhealthy when timeouts exceed half of calls")
	}
}
