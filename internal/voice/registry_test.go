package voice

import (
	"testing"
	"time"

	"github.com/wolfman30/voice-intake/internal/intake"
)

func TestRegistryGetOrStart(t *testing.T) {
	r := NewRegistry(nil)
	s, created := r.GetOrStart("conv-1")
	if !created || s.State() != intake.StateCollecting {
		t.Fatalf("expected a new collecting session, created=%v state=%s", created, s.State())
	}
	again, created := r.GetOrStart("conv-1")
	if created || again != s {
		t.Fatalf("expected existing session to be returned")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	r.Remove("conv-1")
	if _, ok := r.Get("conv-1"); ok {
		t.Fatalf("session should be removed")
	}
}

func TestRegistryEvictFinalized(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := NewRegistry(clock)

	live, _ := r.GetOrStart("live")
	done, _ := r.GetOrStart("done")
	if _, err := done.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if got := r.EvictFinalized(now); len(got) != 0 {
		t.Fatalf("nothing is older than the cutoff yet, evicted %v", got)
	}
	evicted := r.EvictFinalized(now.Add(time.Minute))
	if len(evicted) != 1 || evicted[0] != "done" {
		t.Fatalf("evicted = %v, want [done]", evicted)
	}
	if _, ok := r.Get("live"); !ok || live.State() != intake.StateCollecting {
		t.Fatalf("collecting sessions must never be evicted")
	}
}
