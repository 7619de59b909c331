package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the progress feed
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeWorkspace = "workspace"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes a workspace snapshot to the client after every change
type WebSocketHandler struct {
	ws       Workspace
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler creates a new progress feed handler
func NewWebSocketHandler(ws Workspace, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		ws:  ws,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// HandleProgress upgrades the connection and streams snapshots until the
// client disconnects
func (wsh *WebSocketHandler) HandleProgress(c echo.Context) error {
	conn, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}
	wsh.log.Debug("ws.connected", zap.String("remote", c.RealIP()))

	// Subscribe before the first snapshot so no change is missed in between.
	updates, cancel := wsh.ws.Subscribe()
	defer cancel()

	wsh.sendMessage(wc, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})
	wsh.sendMessage(wc, WSMessage{
		Type:      MsgTypeWorkspace,
		Payload:   mustJSON(wsh.ws.Snapshot()),
		Timestamp: time.Now().UnixMilli(),
	})

	done := make(chan struct{})
	go wsh.readLoop(wc, done)

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := wsh.write(wc, WSMessage{
				Type:      MsgTypeWorkspace,
				Payload:   mustJSON(snap),
				Timestamp: time.Now().UnixMilli(),
			}); err != nil {
				return nil
			}
		case <-done:
			wsh.log.Debug("ws.disconnected")
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(wc *wsConn, done chan<- struct{}) {
	defer close(done)
	for {
		var msg WSMessage
		if err := wc.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.log.Warn("ws.read_failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(wc, WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		default:
			wsh.sendError(wc, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}
}

// Helper methods

func (wsh *WebSocketHandler) write(wc *wsConn, msg WSMessage) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.conn.WriteJSON(msg)
}

func (wsh *WebSocketHandler) sendMessage(wc *wsConn, msg WSMessage) {
	if err := wsh.write(wc, msg); err != nil {
		wsh.log.Debug("ws.send_failed", zap.Error(err))
	}
}

func (wsh *WebSocketHandler) sendError(wc *wsConn, message, code string) {
	wsh.sendMessage(wc, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
