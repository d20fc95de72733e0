package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-intake/internal/intake"
)

func dialStream(t *testing.T, base, sessionID string, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(base, "http") + "/v1/sessions/" + sessionID + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) intake.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var snap intake.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func TestSnapshotStreamPushesUpdates(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	// subscribe before the call starts
	conn := dialStream(t, ts.URL, "conv-1", nil)

	rec := srv.do(t, http.MethodPost, "/webhooks/voice/tool-call", toolCall)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := readSnapshot(t, conn)
	assert.Equal(t, "conv-1", snap.SessionID)
	assert.Equal(t, "Jane", *snap.Fields[intake.FieldFirstName].Value)

	rec = srv.do(t, http.MethodPut, "/v1/sessions/conv-1/fields/lastName", `{"value":"Doe"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = readSnapshot(t, conn)
	assert.Equal(t, intake.SourceUser, snap.Fields[intake.FieldLastName].Source)

	rec = srv.do(t, http.MethodDelete, "/v1/sessions/conv-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestSnapshotStreamSendsCurrentSnapshotFirst(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	rec := srv.do(t, http.MethodPost, "/webhooks/voice/tool-call", toolCall)
	require.Equal(t, http.StatusOK, rec.Code)

	conn := dialStream(t, ts.URL, "conv-1", nil)
	snap := readSnapshot(t, conn)
	assert.Equal(t, "Jane", *snap.Fields[intake.FieldFirstName].Value)
}

func TestSnapshotStreamRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/conv-1/stream"
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
