package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-intake/internal/intake"
)

func TestWatchersKeepsLatestSnapshot(t *testing.T) {
	w := NewWatchers()
	ch, cancel := w.Subscribe("call-1")
	defer cancel()

	w.Publish(intake.Snapshot{SessionID: "call-1", Ingested: 1})
	w.Publish(intake.Snapshot{SessionID: "call-1", Ingested: 2})
	w.Publish(intake.Snapshot{SessionID: "other", Ingested: 9})

	snap := <-ch
	assert.Equal(t, 2, snap.Ingested)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestWatchersCancelAndClose(t *testing.T) {
	w := NewWatchers()
	a, cancelA := w.Subscribe("call-1")
	b, cancelB := w.Subscribe("call-1")
	require.Equal(t, 2, w.Count("call-1"))

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, w.Count("call-1"))

	w.Close("call-1")
	_, open = <-b
	assert.False(t, open)
	assert.Equal(t, 0, w.Count("call-1"))

	// cancel after close must not double-close
	cancelB()
}
