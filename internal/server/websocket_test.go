package server

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/detect"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req any) WebSocketResponse {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(req))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp WebSocketResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocket_Detect(t *testing.T) {
	s, engine := newTestServer(t, Config{Cache: cache.Options{Backend: cache.BackendMemory, Size: 4}})
	conn := dialWebSocket(t, s)
	data := pngBytes(t, 120, 90)

	resp := roundTrip(t, conn, WebSocketRequest{ID: "req-1", Image: data})
	assert.Equal(t, "detection", resp.Type)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result struct {
		Width   int  `json:"width"`
		Cached  bool `json:"cached"`
		Objects []struct {
			Label string `json:"label"`
		} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 120, result.Width)
	require.Len(t, result.Objects, 2)
	assert.Equal(t, "person", result.Objects[0].Label)
	assert.False(t, result.Cached)

	// Same bytes again hit the cache.
	resp = roundTrip(t, conn, WebSocketRequest{Image: data})
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 1, engine.Calls())
}

func TestWebSocket_Errors(t *testing.T) {
	s, engine := newTestServer(t, Config{})
	conn := dialWebSocket(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	var resp WebSocketResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "invalid_request", resp.ErrorType)

	resp = roundTrip(t, conn, WebSocketRequest{ID: "empty"})
	assert.Equal(t, "invalid_request", resp.ErrorType)
	assert.Equal(t, "empty", resp.RequestID)

	resp = roundTrip(t, conn, WebSocketRequest{Image: []byte("nope")})
	assert.Equal(t, "invalid_image", resp.ErrorType)

	engine.SetErr(errors.New("engine down"))
	resp = roundTrip(t, conn, WebSocketRequest{Image: pngBytes(t, 8, 8)})
	assert.Equal(t, "processing_error", resp.ErrorType)
	assert.Contains(t, resp.Error, "engine down")
}

func TestWebSocket_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: &RateLimitConfig{RequestsPerMinute: 1}})
	conn := dialWebSocket(t, s)
	data := pngBytes(t, 8, 8)

	resp := roundTrip(t, conn, WebSocketRequest{Image: data})
	assert.Equal(t, "completed", resp.Status)

	resp = roundTrip(t, conn, WebSocketRequest{Image: data})
	assert.Equal(t, "rate_limited", resp.ErrorType)
}

func TestWebSocket_UploadLimit(t *testing.T) {
	s, engine := newTestServer(t, Config{MaxUploadMB: 1})
	conn := dialWebSocket(t, s)

	resp := roundTrip(t, conn, WebSocketRequest{ID: "big", Image: make([]byte, 1<<20+1)})
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "too_large", resp.ErrorType)
	assert.Equal(t, "big", resp.RequestID)
	assert.Zero(t, engine.Calls())

	// Frames beyond the read limit close the connection.
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	_ = conn.WriteJSON(WebSocketRequest{Image: make([]byte, 3<<20)})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var closed WebSocketResponse
	assert.Error(t, conn.ReadJSON(&closed))
	assert.Zero(t, engine.Calls())
}

func TestJSONBodyLimit(t *testing.T) {
	assert.Equal(t, int64(2<<20+jsonEnvelopeOverhead), jsonBodyLimit(1<<20))
}

type recordingConn struct{ messages [][]byte }

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.messages = append(c.messages, data)
	return nil
}

func TestHandleWebSocketMessage_AssignsRequestID(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	conn := &recordingConn{}

	s.handleWebSocketMessage(t.Context(), conn, "client", []byte(`{"image":""}`))
	require.Len(t, conn.messages, 1)

	var resp WebSocketResponse
	require.NoError(t, json.Unmarshal(conn.messages[0], &resp))
	assert.Equal(t, "error", resp.Type)
	assert.NotEmpty(t, resp.RequestID)
}
