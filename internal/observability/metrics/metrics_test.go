package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIntakeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.ObserveIngest("accepted")
	m.ObserveIngest("accepted")
	m.ObserveIngest("unknown_field")
	m.ObserveMerge("realtime", "adopted")
	m.ObserveFinalize("ok", []string{"phone", "email"})
	m.ObserveRefineLatency("rules", "ok", 0.01)
	m.SetActiveSessions(3)

	if got := testutil.ToFloat64(m.ingestTotal.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.reviewFields.WithLabelValues("phone")); got != 1 {
		t.Fatalf("review phone = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeSessions); got != 3 {
		t.Fatalf("active = %v, want 3", got)
	}
}

func TestSnapshotIngest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.ObserveIngest("accepted")
	m.ObserveIngest("accepted")
	m.ObserveIngest("unknown_field")

	stats := SnapshotIngest(reg)
	if stats.Total != 3 {
		t.Fatalf("total = %d, want 3", stats.Total)
	}
	if stats.ByOutcome["accepted"] != 2 || stats.ByOutcome["unknown_field"] != 1 {
		t.Fatalf("unexpected breakdown: %v", stats.ByOutcome)
	}
}

func TestSnapshotIngestEmptyRegistry(t *testing.T) {
	stats := SnapshotIngest(prometheus.NewRegistry())
	if stats.Total != 0 || len(stats.ByOutcome) != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestIntakeMetricsNilSafe(t *testing.T) {
	var m *IntakeMetrics
	m.ObserveIngest("accepted")
	m.ObserveMerge("refinement", "kept")
	m.ObserveFinalize("ok", nil)
	m.ObserveRefineLatency("rules", "ok", 0.1)
	m.SetActiveSessions(1)
}
