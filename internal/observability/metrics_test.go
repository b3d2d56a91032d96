package observability

import "testing"

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordTransition("RECEIVED", "ACCEPTED")
	m.RecordDeliveryFailure("delete")
	if got := m.Transitions("RECEIVED", "ACCEPTED"); got != 0 {
		t.Fatalf("expected 0 on nil metrics, got %d", got)
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("RECEIVED", "ACCEPTED")
	m.RecordTransition("RECEIVED", "ACCEPTED")
	m.RecordDeliveryFailure("send")

	snap := m.Snapshot()
	if snap.Transitions["RECEIVED->ACCEPTED"] != 2 {
		t.Fatalf("unexpected transition count: %v", snap.Transitions)
	}
	snap.Transitions["RECEIVED->ACCEPTED"] = 100
	if got := m.Transitions("RECEIVED", "ACCEPTED"); got != 2 {
		t.Fatalf("snapshot mutation leaked into metrics: %d", got)
	}
	if got := m.DeliveryFailures("send"); got != 1 {
		t.Fatalf("expected 1 delivery failure, got %d", got)
	}
	if keys := snap.Keys(); len(keys) != 1 || keys[0] != "RECEIVED->ACCEPTED" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
