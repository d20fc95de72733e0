package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/voice"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// VoiceToolEvent is the voice vendor's tool-call webhook payload.
type VoiceToolEvent struct {
	AssistantID    string           `json:"assistant_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	EventType      string           `json:"event_type,omitempty"`
	From           string           `json:"from,omitempty"`
	To             string           `json:"to,omitempty"`
	Payload        VoiceToolPayload `json:"payload"`
}

// VoiceToolPayload carries the tool invocation. Each argument is one
// raw key/value pair extracted by the vendor's model.
type VoiceToolPayload struct {
	ToolName    string             `json:"tool_name,omitempty"`
	ToolCallID  string             `json:"tool_call_id,omitempty"`
	Arguments   ToolArguments      `json:"arguments,omitempty"`
	Confidences map[string]float64 `json:"confidences,omitempty"`
}

// ToolArguments decodes a JSON object into strings. Numbers and booleans are
// stringified and nulls skipped, since vendor models are loose about types.
type ToolArguments map[string]string

func (a *ToolArguments) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ToolArguments, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	*a = out
	return nil
}

// VoiceToolResponse is echoed back to the vendor.
type VoiceToolResponse struct {
	ToolCallID string                `json:"tool_call_id"`
	SessionID  string                `json:"session_id"`
	Result     string                `json:"result"`
	Accepted   []intake.IngestResult `json:"accepted"`
	Dropped    []string              `json:"dropped"`
}

type VoiceToolErrorResponse struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Error      string `json:"error"`
}

type toolCallIngester interface {
	IngestToolCall(ctx context.Context, call voice.ToolCall) (voice.ToolCallResult, error)
}

type VoiceToolHandler struct {
	ingester toolCallIngester
	logger   *logging.Logger
}

func NewVoiceToolHandler(ingester toolCallIngester, logger *logging.Logger) *VoiceToolHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceToolHandler{ingester: ingester, logger: logger}
}

// HandleToolCall is the HTTP handler for POST /webhooks/voice/tool-call.
func (h *VoiceToolHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("voice-tool: failed to read body", "error", err)
		h.writeError(w, "", "bad request", http.StatusBadRequest)
		return
	}

	var event VoiceToolEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("voice-tool: failed to parse event", "error", err)
		h.writeError(w, "", "bad request", http.StatusBadRequest)
		return
	}
	toolCallID := event.Payload.ToolCallID

	h.logger.Debug("voice-tool: received event",
		"event_type", event.EventType,
		"conversation_id", event.ConversationID,
		"tool_name", event.Payload.ToolName,
		"tool_call_id", toolCallID,
		"pairs", len(event.Payload.Arguments),
	)

	res, err := h.ingester.IngestToolCall(r.Context(), voice.ToolCall{
		SessionID:   event.ConversationID,
		ToolCallID:  toolCallID,
		Arguments:   event.Payload.Arguments,
		Confidences: event.Payload.Confidences,
	})
	if err != nil {
		code := statusFor(err)
		h.logger.Warn("voice-tool: ingest failed",
			"conversation_id", res.SessionID,
			"tool_call_id", toolCallID,
			"status", code,
			"error", err,
		)
		h.writeError(w, toolCallID, err.Error(), code)
		return
	}

	accepted := res.Batch.Accepted
	if accepted == nil {
		accepted = []intake.IngestResult{}
	}
	dropped := res.Batch.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	writeJSON(w, http.StatusOK, VoiceToolResponse{
		ToolCallID: toolCallID,
		SessionID:  res.SessionID,
		Result:     "ok",
		Accepted:   accepted,
		Dropped:    dropped,
	})
}

func (h *VoiceToolHandler) writeError(w http.ResponseWriter, toolCallID, msg string, code int) {
	writeJSON(w, code, VoiceToolErrorResponse{ToolCallID: toolCallID, Error: msg})
}

// statusFor maps service and session errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, intake.ErrInvalidField), errors.Is(err, intake.ErrUnknownField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, intake.ErrNotCollecting), errors.Is(err, intake.ErrAlreadyFinalized), errors.Is(err, intake.ErrIdle),
		errors.Is(err, intake.ErrFieldEmpty):
		return http.StatusConflict
	case errors.Is(err, voice.ErrDispatcherStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
