// Package handoff delivers finalized intake snapshots to downstream systems.
// The intake core never writes to a store itself; it hands a Record to a Sink.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/voice-intake/internal/intake"
)

const EventTypeFinalized = "intake.finalized.v1"

// Record is the payload handed off once a session is finalized.
type Record struct {
	EventID     string                  `json:"event_id"`
	EventType   string                  `json:"event_type"`
	SessionID   string                  `json:"session_id"`
	Snapshot    intake.Snapshot         `json:"snapshot"`
	NeedsReview []intake.CanonicalField `json:"needs_review"`
	Refiner     string                  `json:"refiner,omitempty"`
	FinalizedAt time.Time               `json:"finalized_at"`
}

// NewRecord builds a finalized-event record for a session.
func NewRecord(result intake.FinalResult, refiner string) Record {
	return Record{
		EventID:     uuid.NewString(),
		EventType:   EventTypeFinalized,
		SessionID:   result.Snapshot.SessionID,
		Snapshot:    result.Snapshot,
		NeedsReview: result.NeedsReview,
		Refiner:     refiner,
		FinalizedAt: result.Snapshot.TakenAt,
	}
}

// Sink receives finalized records.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Deliver(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

func validate(rec Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("handoff: session_id required")
	}
	return nil
}
