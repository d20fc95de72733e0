package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/observability/metrics"
	"github.com/wolfman30/voice-intake/internal/voice"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

type sessionService interface {
	Snapshot(ctx context.Context, id string) (intake.Snapshot, error)
	EditField(ctx context.Context, id string, field intake.CanonicalField, value string) (intake.Snapshot, error)
	MarkUserEdited(ctx context.Context, id string, field intake.CanonicalField) (intake.Snapshot, error)
	Finalize(ctx context.Context, id string, req voice.FinalizeRequest) (intake.FinalResult, error)
	Reset(ctx context.Context, id string) error
}

// SessionHandler serves the review UI.
type SessionHandler struct {
	sessions sessionService
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewSessionHandler(sessions sessionService, gatherer prometheus.Gatherer, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{sessions: sessions, gatherer: gatherer, logger: logger}
}

// EditFieldRequest sets a value, or with no value confirms the current one.
type EditFieldRequest struct {
	Value *string `json:"value"`
}

type FinalizeBody struct {
	Transcript string            `json:"transcript,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// GetSnapshot handles GET /v1/sessions/{id}.
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// EditField handles PUT /v1/sessions/{id}/fields/{field}.
func (h *SessionHandler) EditField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rawField := chi.URLParam(r, "field")
	field, ok := intake.Resolve(rawField)
	if !ok {
		h.fail(w, r, fmt.Errorf("%w: %q", intake.ErrUnknownField, rawField))
		return
	}

	var req EditFieldRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	var (
		snap intake.Snapshot
		err  error
	)
	if req.Value == nil {
		snap, err = h.sessions.MarkUserEdited(r.Context(), id, field)
	} else {
		snap, err = h.sessions.EditField(r.Context(), id, field, *req.Value)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Finalize handles POST /v1/sessions/{id}/finalize.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var body FinalizeBody
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	result, err := h.sessions.Finalize(r.Context(), chi.URLParam(r, "id"), voice.FinalizeRequest{
		Transcript: body.Transcript,
		Fields:     body.Fields,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if result.NeedsReview == nil {
		result.NeedsReview = []intake.CanonicalField{}
	}
	writeJSON(w, http.StatusOK, result)
}

// Reset handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /v1/stats with ingest counts read back from the metrics registry.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.SnapshotIngest(h.gatherer))
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("session api: request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	return json.Unmarshal(data, v)
}
