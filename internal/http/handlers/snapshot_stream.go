package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/voice-intake/internal/intake"
	"github.com/wolfman30/voice-intake/internal/voice"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

type snapshotWatcher interface {
	Snapshot(ctx context.Context, id string) (intake.Snapshot, error)
	Watch(id string) (<-chan intake.Snapshot, func())
}

// SnapshotStreamHandler pushes live snapshots to the review UI over a
// websocket so the form fills in while the call is still running.
type SnapshotStreamHandler struct {
	sessions snapshotWatcher
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewSnapshotStreamHandler accepts same-origin upgrades plus any origin in
// allowedOrigins ("*" allows all).
func NewSnapshotStreamHandler(sessions snapshotWatcher, allowedOrigins []string, logger *logging.Logger) *SnapshotStreamHandler {
	if logger == nil {
		logger = logging.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &SnapshotStreamHandler{
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// Stream handles GET /v1/sessions/{id}/stream. The current snapshot, if
// any, is sent first; the socket closes when the session is reset.
func (h *SnapshotStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, cancel := h.sessions.Watch(id)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("snapshot stream upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	if snap, err := h.sessions.Snapshot(r.Context(), id); err == nil {
		if err := writeSnapshot(conn, snap); err != nil {
			return
		}
	} else if !errors.Is(err, voice.ErrSessionNotFound) {
		h.logger.Error("snapshot stream initial load failed", "session_id", id, "error", err)
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				h.logger.Debug("snapshot stream write failed", "session_id", id, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap intake.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(snap)
}
