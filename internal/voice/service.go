// Package voice connects vendor tool-call events and the UI to intake
// sessions. Vendor events are applied through a single-consumer Dispatcher;
// UI edits and finalization go straight to the session, which is safe for
// concurrent use.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/voice-intake/internal/handoff"
	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/observability/metrics"
	"github.com/wolfman30/voice-intake/internal/refine"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

var voiceTracer = otel.Tracer("voice-intake/voice")

var ErrSessionNotFound = errors.New("voice: session not found")

// SnapshotStore serves finalized snapshots for sessions no longer in memory.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*handoff.Record, error)
	Delete(ctx context.Context, sessionID string) error
}

type Config struct {
	Refiner         refine.Extractor
	RefineTimeout   time.Duration
	Sink            handoff.Sink
	Store           SnapshotStore
	Metrics         *metrics.IntakeMetrics
	Logger          *logging.Logger
	DispatchBuffer  int
	RetainFinalized time.Duration
	Now             func() time.Time
}

// Service owns the session registry and the event dispatcher.
type Service struct {
	registry        *Registry
	dispatcher      *Dispatcher
	watchers        *Watchers
	refiner         refine.Extractor
	refineTimeout   time.Duration
	sink            handoff.Sink
	store           SnapshotStore
	metrics         *metrics.IntakeMetrics
	logger          *logging.Logger
	retainFinalized time.Duration
	now             func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RefineTimeout <= 0 {
		cfg.RefineTimeout = 20 * time.Second
	}
	if cfg.RetainFinalized <= 0 {
		cfg.RetainFinalized = 15 * time.Minute
	}
	s := &Service{
		registry:        NewRegistry(cfg.Now, intake.WithClock(cfg.Now)),
		watchers:        NewWatchers(),
		refiner:         cfg.Refiner,
		refineTimeout:   cfg.RefineTimeout,
		sink:            cfg.Sink,
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		retainFinalized: cfg.RetainFinalized,
		now:             cfg.Now,
	}
	s.dispatcher = NewDispatcher(cfg.DispatchBuffer, s.apply, cfg.Logger)
	return s
}

// Run drives the dispatcher and periodically evicts finalized sessions.
// It returns when ctx is done.
func (s *Service) Run(ctx context.Context) error {
	go s.evictLoop(ctx)
	return s.dispatcher.Run(ctx)
}

func (s *Service) evictLoop(ctx context.Context) {
	interval := s.retainFinalized / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictFinalized()
		}
	}
}

// EvictFinalized removes finalized sessions idle longer than the retention
// window and ends any live snapshot streams on them.
func (s *Service) EvictFinalized() []string {
	evicted := s.registry.EvictFinalized(s.now().Add(-s.retainFinalized))
	for _, id := range evicted {
		s.watchers.Close(id)
	}
	if len(evicted) > 0 {
		s.logger.Info("voice: evicted finalized sessions", "count", len(evicted))
		s.metrics.SetActiveSessions(s.registry.Len())
	}
	return evicted
}

// ToolCall is one vendor tool invocation.
type ToolCall struct {
	SessionID   string
	ToolCallID  string
	Arguments   map[string]string
	Confidences map[string]float64
}

type ToolCallResult struct {
	SessionID  string
	ToolCallID string
	Batch      intake.BatchResult
}

// IngestToolCall queues a tool call and waits until it has been merged.
// A missing session ID gets a generated one.
func (s *Service) IngestToolCall(ctx context.Context, call ToolCall) (ToolCallResult, error) {
	id := strings.TrimSpace(call.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	res, err := s.dispatcher.Submit(ctx, Event{
		SessionID:   id,
		ToolCallID:  call.ToolCallID,
		Arguments:   call.Arguments,
		Confidences: call.Confidences,
	})
	if err != nil {
		return ToolCallResult{SessionID: id, ToolCallID: call.ToolCallID}, err
	}
	return ToolCallResult{SessionID: id, ToolCallID: call.ToolCallID, Batch: res}, nil
}

// apply runs on the dispatcher goroutine.
func (s *Service) apply(ctx context.Context, ev Event) (intake.BatchResult, error) {
	_, span := voiceTracer.Start(ctx, "voice.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("intake.session_id", ev.SessionID),
		attribute.String("intake.tool_call_id", ev.ToolCallID),
		attribute.Int("intake.pairs", len(ev.Arguments)),
	)

	session, created := s.registry.GetOrStart(ev.SessionID)
	if created {
		s.logger.Info("voice: session started", "session_id", ev.SessionID)
		s.metrics.SetActiveSessions(s.registry.Len())
	}

	var (
		res intake.BatchResult
		err error
	)
	if len(ev.Confidences) == 0 {
		res, err = session.IngestBatch(ev.Arguments)
	} else {
		res, err = ingestWithConfidences(session, ev.Arguments, ev.Confidences)
	}
	if err != nil {
		for range ev.Arguments {
			s.metrics.ObserveIngest("rejected")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("voice: tool call rejected", "session_id", ev.SessionID, "tool_call_id", ev.ToolCallID, "error", err)
		return res, err
	}

	for _, acc := range res.Accepted {
		s.metrics.ObserveIngest("accepted")
		s.metrics.ObserveMerge(string(intake.SourceRealtime), string(acc.Decision))
	}
	for _, key := range res.Dropped {
		s.metrics.ObserveIngest("unknown_field")
		s.logger.Warn("voice: unresolved field key dropped", "session_id", ev.SessionID, "raw_key", key)
	}
	s.watchers.Publish(res.Snapshot)
	span.SetAttributes(
		attribute.Int("intake.accepted", len(res.Accepted)),
		attribute.Int("intake.dropped", len(res.Dropped)),
	)
	return res, nil
}

// ingestWithConfidences mirrors Session.IngestBatch for events that carry a
// vendor-reported confidence for some keys.
func ingestWithConfidences(session *intake.Session, pairs map[string]string, confidences map[string]float64) (intake.BatchResult, error) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out intake.BatchResult
	for _, k := range keys {
		var (
			res intake.IngestResult
			err error
		)
		if c, ok := confidences[k]; ok {
			res, err = session.IngestWithConfidence(k, pairs[k], c)
		} else {
			res, err = session.Ingest(k, pairs[k])
		}
		switch {
		case errors.Is(err, intake.ErrUnknownField):
			out.Dropped = append(out.Dropped, k)
		case err != nil:
			return intake.BatchResult{}, err
		default:
			out.Accepted = append(out.Accepted, res)
		}
	}
	out.Snapshot = session.Snapshot()
	return out, nil
}

// Watch subscribes to snapshot updates for a session, which need not have
// started yet.
func (s *Service) Watch(id string) (<-chan intake.Snapshot, func()) {
	return s.watchers.Subscribe(id)
}

// Snapshot returns the live snapshot, or the stored one for an evicted session.
func (s *Service) Snapshot(ctx context.Context, id string) (intake.Snapshot, error) {
	if session, ok := s.registry.Get(id); ok {
		return session.Snapshot(), nil
	}
	if s.store != nil {
		rec, err := s.store.Load(ctx, id)
		if err != nil {
			return intake.Snapshot{}, fmt.Errorf("voice: load snapshot: %w", err)
		}
		if rec != nil {
			return rec.Snapshot, nil
		}
	}
	return intake.Snapshot{}, ErrSessionNotFound
}

// EditField stores a user-typed value that automated extraction cannot overwrite.
func (s *Service) EditField(_ context.Context, id string, field intake.CanonicalField, value string) (intake.Snapshot, error) {
	session, ok := s.registry.Get(id)
	if !ok {
		return intake.Snapshot{}, ErrSessionNotFound
	}
	snap, err := session.EditField(field, value)
	if err != nil {
		return intake.Snapshot{}, err
	}
	s.watchers.Publish(snap)
	s.logger.Info("voice: field edited by user", "session_id", id, "field", string(field))
	return snap, nil
}

// MarkUserEdited pins the current value of field as user-confirmed.
func (s *Service) MarkUserEdited(_ context.Context, id string, field intake.CanonicalField) (intake.Snapshot, error) {
	session, ok := s.registry.Get(id)
	if !ok {
		return intake.Snapshot{}, ErrSessionNotFound
	}
	snap, err := session.MarkUserEdited(field)
	if err != nil {
		return intake.Snapshot{}, err
	}
	s.watchers.Publish(snap)
	return snap, nil
}

// FinalizeRequest carries the refinement input. Fields, when present, are
// used as-is; otherwise Transcript is run through the configured refiner.
type FinalizeRequest struct {
	Transcript string
	Fields     map[string]string
}

// Finalize runs refinement, merges it, and hands the snapshot off.
// Refinement and handoff failures are logged; the session still finalizes.
func (s *Service) Finalize(ctx context.Context, id string, req FinalizeRequest) (intake.FinalResult, error) {
	ctx, span := voiceTracer.Start(ctx, "voice.finalize")
	defer span.End()
	span.SetAttributes(attribute.String("intake.session_id", id))

	session, ok := s.registry.Get(id)
	if !ok {
		return intake.FinalResult{}, ErrSessionNotFound
	}

	status := "ok"
	refinement, refiner, err := s.refinement(ctx, req)
	if err != nil {
		status = "refine_failed"
		span.RecordError(err)
		s.logger.Error("voice: refinement failed, finalizing with real-time values", "session_id", id, "refiner", refiner, "error", err)
		refinement = nil
	}

	result, err := session.Finalize(refinement)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return intake.FinalResult{}, err
	}
	for _, decision := range result.Report {
		s.metrics.ObserveMerge(string(intake.SourceRefinement), string(decision))
	}
	s.watchers.Publish(result.Snapshot)

	if s.sink != nil {
		if err := s.sink.Deliver(ctx, handoff.NewRecord(result, refiner)); err != nil {
			status = "handoff_failed"
			span.RecordError(err)
			s.logger.Error("voice: snapshot handoff failed", "session_id", id, "error", err)
		}
	}

	review := make([]string, len(result.NeedsReview))
	for i, f := range result.NeedsReview {
		review[i] = string(f)
	}
	s.metrics.ObserveFinalize(status, review)
	span.SetAttributes(
		attribute.String("intake.finalize_status", status),
		attribute.Int("intake.needs_review", len(review)),
	)
	s.logger.Info("voice: session finalized", "session_id", id, "status", status, "needs_review", review)
	return result, nil
}

func (s *Service) refinement(ctx context.Context, req FinalizeRequest) (intake.FieldMap, string, error) {
	if len(req.Fields) > 0 {
		return s.supplied(req.Fields), "client", nil
	}
	if strings.TrimSpace(req.Transcript) == "" || s.refiner == nil {
		return nil, "", nil
	}

	name := s.refiner.Name()
	ctx, span := voiceTracer.Start(ctx, "voice.refine")
	defer span.End()
	span.SetAttributes(attribute.String("intake.refiner", name))

	ctx, cancel := context.WithTimeout(ctx, s.refineTimeout)
	defer cancel()

	start := time.Now()
	fields, err := s.refiner.Extract(ctx, req.Transcript)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveRefineLatency(name, status, time.Since(start).Seconds())
	return fields, name, err
}

// supplied resolves and normalizes caller-provided refinement pairs.
func (s *Service) supplied(pairs map[string]string) intake.FieldMap {
	out, unknown := intake.ResolvePairs(pairs, intake.SourceRefinement, s.now())
	for _, key := range unknown {
		s.logger.Warn("voice: unresolved refinement key dropped", "raw_key", key)
	}
	return out
}

// Reset discards the session and any stored snapshot.
func (s *Service) Reset(ctx context.Context, id string) error {
	session, ok := s.registry.Get(id)
	if ok {
		session.Reset()
		s.registry.Remove(id)
		s.watchers.Close(id)
		s.metrics.SetActiveSessions(s.registry.Len())
		s.logger.Info("voice: session reset", "session_id", id)
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("voice: delete snapshot: %w", err)
		}
		return nil
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}
