package voice

import (
	"sync"

	"github.com/wolfman30/voice-intake/internal/intake"
)

// Watchers fans snapshot updates out to per-session subscribers. Each
// subscriber holds at most one pending snapshot; a slow reader only ever
// sees the latest state.
type Watchers struct {
	mu   sync.Mutex
	subs map[string]map[chan intake.Snapshot]struct{}
}

func NewWatchers() *Watchers {
	return &Watchers{subs: make(map[string]map[chan intake.Snapshot]struct{})}
}

// Subscribe registers interest in a session. The returned cancel func is
// idempotent. The channel is closed by cancel or when the session is closed.
func (w *Watchers) Subscribe(sessionID string) (<-chan intake.Snapshot, func()) {
	ch := make(chan intake.Snapshot, 1)
	w.mu.Lock()
	set, ok := w.subs[sessionID]
	if !ok {
		set = make(map[chan intake.Snapshot]struct{})
		w.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if set, ok := w.subs[sessionID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(w.subs, sessionID)
				}
			}
		})
	}
}

// Publish delivers snap to every subscriber of its session without blocking.
func (w *Watchers) Publish(snap intake.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[snap.SessionID] {
		select {
		case ch <- snap:
		default:
			// replace the stale pending snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Close ends every subscription for a session.
func (w *Watchers) Close(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[sessionID] {
		close(ch)
	}
	delete(w.subs, sessionID)
}

// Count returns the number of live subscriptions for a session.
func (w *Watchers) Count(sessionID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[sessionID])
}
