package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/godetect/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second

	// jsonEnvelopeOverhead covers the JSON around base64 image data.
	jsonEnvelopeOverhead = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketRequest is one detection request. Image is base64 in JSON.
type WebSocketRequest struct {
	ID    string `json:"id,omitempty"`
	Image []byte `json:"image"`
}

// WebSocketResponse answers one request.
type WebSocketResponse struct {
	Type      string      `json:"type"`   // "detection" or "error"
	Status    string      `json:"status"` // "completed" or "error"
	RequestID string      `json:"request_id"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
}

// wsConn is the subset of *websocket.Conn used to send responses.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
}

// detectWebSocketHandler streams detections over a WebSocket.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("websocket connected", "remote_addr", r.RemoteAddr, "request_id", requestIDFrom(r.Context()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.serveWebSocket(ctx, conn, getClientIP(r))
}

// jsonBodyLimit bounds a JSON message carrying base64 images. Base64 inflates by
// 4/3; messages up to twice the upload limit are read so oversized images get a
// too_large reply, larger ones are cut off.
func jsonBodyLimit(maxUpload int64) int64 {
	return 2*maxUpload + jsonEnvelopeOverhead
}

func (s *Server) serveWebSocket(ctx context.Context, conn *websocket.Conn, clientID string) {
	conn.SetReadLimit(jsonBodyLimit(s.maxUpload))
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		s.handleWebSocketMessage(ctx, conn, clientID, data)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn wsConn, clientID string, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocket(conn, errorResponse("", "invalid_request", "failed to parse request: "+err.Error()))
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if len(req.Image) == 0 {
		s.sendWebSocket(conn, errorResponse(id, "invalid_request", "no image data provided"))
		return
	}
	uploadSizeBytes.Observe(float64(len(req.Image)))
	if int64(len(req.Image)) > s.maxUpload {
		s.sendWebSocket(conn, errorResponse(id, "too_large",
			fmt.Sprintf("image is %d bytes, limit is %d", len(req.Image), s.maxUpload)))
		return
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckRateLimit(clientID, int64(len(req.Image))); err != nil {
			rateLimitHits.WithLabelValues("websocket").Inc()
			s.sendWebSocket(conn, errorResponse(id, "rate_limited", err.Error()))
			return
		}
	}

	img, _, err := utils.DecodeImageBytes(req.Image)
	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocket(conn, errorResponse(id, "invalid_image", err.Error()))
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	if s.timeoutSec > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	}
	defer cancel()

	res, err := s.detectWithCache(reqCtx, "websocket", req.Image, img)
	if err != nil {
		s.sendWebSocket(conn, errorResponse(id, "processing_error", err.Error()))
		return
	}

	s.sendWebSocket(conn, WebSocketResponse{Type: "detection", Status: "completed", RequestID: id, Result: res})
}

func errorResponse(id, errorType, message string) WebSocketResponse {
	return WebSocketResponse{Type: "error", Status: "error", RequestID: id, Error: message, ErrorType: errorType}
}

func (s *Server) sendWebSocket(conn wsConn, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal websocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("failed to send websocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
