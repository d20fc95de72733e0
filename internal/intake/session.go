package intake

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle stage of an extraction session.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateFinalizing State = "finalizing"
)

var (
	ErrUnknownField     = errors.New("intake: unknown field")
	ErrInvalidField     = errors.New("intake: invalid canonical field")
	ErrNotCollecting    = errors.New("intake: session is not collecting")
	ErrAlreadyFinalized = errors.New("intake: session already finalized")
	ErrIdle             = errors.New("intake: session is idle")
	ErrFieldEmpty       = errors.New("intake: field has no value to confirm")
)

// FieldSnapshot is the read-only view of one field handed to consumers.
type FieldSnapshot struct {
	Value       *string   `json:"value"`
	Confidence  float64   `json:"confidence"`
	Source      Source    `json:"source"`
	NeedsReview bool      `json:"needs_review"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Snapshot is a copy of a session's fields at one point in time.
type Snapshot struct {
	SessionID string                           `json:"session_id"`
	State     State                            `json:"state"`
	Fields    map[CanonicalField]FieldSnapshot `json:"fields"`
	Ingested  int                              `json:"ingested"`
	TakenAt   time.Time                        `json:"taken_at"`
}

// Values converts the snapshot back into a FieldMap.
func (s Snapshot) Values() FieldMap {
	out := make(FieldMap, len(s.Fields))
	for f, v := range s.Fields {
		out[f] = copyValue(FieldValue{
			Value:      v.Value,
			Confidence: v.Confidence,
			Source:     v.Source,
			UpdatedAt:  v.UpdatedAt,
		})
	}
	return out
}

// IngestResult describes the outcome of one accepted key/value pair.
type IngestResult struct {
	RawKey     string         `json:"raw_key"`
	Field      CanonicalField `json:"field"`
	Normalized Normalized     `json:"-"`
	Decision   Decision       `json:"decision"`
}

// BatchResult is the outcome of IngestBatch.
type BatchResult struct {
	Accepted []IngestResult `json:"accepted"`
	Dropped  []string       `json:"dropped"`
	Snapshot Snapshot       `json:"snapshot"`
}

// FinalResult is the outcome of Finalize.
type FinalResult struct {
	Snapshot    Snapshot         `json:"snapshot"`
	NeedsReview []CanonicalField `json:"needs_review"`
	Report      MergeReport      `json:"report"`
}

// Session accumulates the fields of one voice interaction.
// It moves Idle -> Collecting -> Finalizing -> Idle and is safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	id      string
	state   State
	fields  FieldMap
	ingests int
	now     func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now for timestamps and date normalization.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession returns an idle session.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:     id,
		state:  StateIdle,
		fields: FieldMap{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a new interaction, clearing any previous fields.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = FieldMap{}
	s.ingests = 0
	s.state = StateCollecting
}

// Reset discards all fields and returns the session to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = FieldMap{}
	s.ingests = 0
	s.state = StateIdle
}

// Ingest resolves, normalizes and merges one real-time key/value pair.
// Unresolvable keys return ErrUnknownField and leave the session unchanged.
func (s *Session) Ingest(rawKey, rawValue string) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(rawKey, rawValue, nil)
}

// IngestWithConfidence is Ingest where the event source reported its own
// confidence, which replaces the normalizer's whenever a value was produced.
func (s *Session) IngestWithConfidence(rawKey, rawValue string, confidence float64) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clampConfidence(confidence)
	return s.ingestLocked(rawKey, rawValue, &c)
}

// IngestBatch ingests every pair in key order. Unknown keys are reported in
// Dropped; only a session that is not collecting fails the whole batch.
func (s *Session) IngestBatch(pairs map[string]string) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCollecting {
		return BatchResult{}, ErrNotCollecting
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out BatchResult
	for _, k := range keys {
		res, err := s.ingestLocked(k, pairs[k], nil)
		if err != nil {
			out.Dropped = append(out.Dropped, k)
			continue
		}
		out.Accepted = append(out.Accepted, res)
	}
	out.Snapshot = s.snapshotLocked()
	return out, nil
}

func (s *Session) ingestLocked(rawKey, rawValue string, reported *float64) (IngestResult, error) {
	if s.state != StateCollecting {
		return IngestResult{}, ErrNotCollecting
	}
	field, ok := Resolve(rawKey)
	if !ok {
		return IngestResult{}, fmt.Errorf("%w: %q", ErrUnknownField, rawKey)
	}

	now := s.now()
	n := NormalizeAt(field, rawValue, now)
	// A reported score can lower the normalizer's verdict but never raise
	// it, so unparseable text stays flagged for review.
	if reported != nil && n.Value != nil && *reported < n.Confidence {
		n.Confidence = *reported
	}

	incoming := FieldMap{field: {
		Value:      n.Value,
		Confidence: n.Confidence,
		Source:     SourceRealtime,
		UpdatedAt:  now,
	}}
	merged, report := MergeWithReport(s.fields, incoming)
	s.fields = merged
	s.ingests++

	return IngestResult{
		RawKey:     rawKey,
		Field:      field,
		Normalized: n,
		Decision:   report[field],
	}, nil
}

// MarkUserEdited pins the field's current value as user-entered so automated
// extraction can no longer change it. Calling it again has no further effect.
// An empty field cannot be confirmed; use EditField with a blank value to pin
// it cleared.
func (s *Session) MarkUserEdited(field CanonicalField) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(field); err != nil {
		return Snapshot{}, err
	}
	cur := s.fields[field]
	if cur.Empty() && cur.Source != SourceUser {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrFieldEmpty, field)
	}
	if cur.Source != SourceUser {
		cur.Source = SourceUser
		cur.Confidence = 1
		cur.UpdatedAt = s.now()
		s.fields[field] = cur
	}
	return s.snapshotLocked(), nil
}

// EditField stores a value typed by the user and pins it like MarkUserEdited.
// A blank value clears the field and keeps it cleared.
func (s *Session) EditField(field CanonicalField, value string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(field); err != nil {
		return Snapshot{}, err
	}
	var v *string
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		v = strPtr(trimmed)
	}
	s.fields[field] = FieldValue{
		Value:      v,
		Confidence: 1,
		Source:     SourceUser,
		UpdatedAt:  s.now(),
	}
	return s.snapshotLocked(), nil
}

func (s *Session) editableLocked(field CanonicalField) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	if s.state == StateIdle {
		return ErrIdle
	}
	return nil
}

// Finalize merges a second-pass extraction over the collected fields and
// reports which fields are still below ReviewThreshold. The refinement may be
// nil. A session finalizes once; it stays readable until Reset.
func (s *Session) Finalize(refinement FieldMap) (FinalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateFinalizing:
		return FinalResult{}, ErrAlreadyFinalized
	case StateIdle:
		return FinalResult{}, ErrNotCollecting
	}

	incoming := make(FieldMap, len(refinement))
	now := s.now()
	for f, v := range refinement {
		if !f.Valid() {
			continue
		}
		if v.Source != SourceUser {
			v.Source = SourceRefinement
		}
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = now
		}
		v.Confidence = clampConfidence(v.Confidence)
		incoming[f] = v
	}

	merged, report := MergeWithReport(s.fields, incoming)
	s.fields = merged
	s.state = StateFinalizing

	return FinalResult{
		Snapshot:    s.snapshotLocked(),
		NeedsReview: s.fields.LowConfidence(),
		Report:      report,
	}, nil
}

// Snapshot returns a copy of the current fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	fields := make(map[CanonicalField]FieldSnapshot, len(s.fields))
	for f, v := range s.fields {
		v = copyValue(v)
		fields[f] = FieldSnapshot{
			Value:       v.Value,
			Confidence:  v.Confidence,
			Source:      v.Source,
			NeedsReview: !v.Empty() && v.NeedsReview(),
			UpdatedAt:   v.UpdatedAt,
		}
	}
	return Snapshot{
		SessionID: s.id,
		State:     s.state,
		Fields:    fields,
		Ingested:  s.ingests,
		TakenAt:   s.now(),
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
