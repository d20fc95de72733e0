package voice

import (
	"sync"
	"time"

	"github.com/wolfman30/voice-intake/internal/intake"
)

type entry struct {
	session *intake.Session
	touched time.Time
}

// Registry holds the live sessions keyed by conversation ID.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
	opts     []intake.SessionOption
}

func NewRegistry(now func() time.Time, opts ...intake.SessionOption) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*entry),
		now:      now,
		opts:     opts,
	}
}

// GetOrStart returns the session for id, starting a new one when none exists.
func (r *Registry) GetOrStart(id string) (*intake.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.touched = r.now()
		return e.session, false
	}
	s := intake.NewSession(id, r.opts...)
	s.Start()
	r.sessions[id] = &entry{session: s, touched: r.now()}
	return s, true
}

func (r *Registry) Get(id string) (*intake.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.touched = r.now()
	return e.session, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictFinalized drops finalized sessions untouched since cutoff and returns their IDs.
func (r *Registry) EvictFinalized(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, e := range r.sessions {
		if e.session.State() == intake.StateFinalizing && e.touched.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
