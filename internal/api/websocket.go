package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Message types exchanged on the plan stream
	MessagePredict = "predict"
	MessagePlan    = "plan"
	MessageError   = "error"

	wsReadLimit    = 512 * 1024
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamRequest is an inbound websocket message
type StreamRequest struct {
	Type string `json:"type"`
	PredictRequest
}

// wsConnection is one client of the plan stream
type wsConnection struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// handleWebSocket upgrades the connection and answers every predict message
// with a plan message
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	s.service.Monitor().IncrementCounter("websocket_sessions")

	ctx, cancel := context.WithCancel(context.Background())
	ws := &wsConnection{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		logger: s.logger.With(zap.String("remote", conn.RemoteAddr().String())),
		ctx:    ctx,
		cancel: cancel,
	}

	go ws.writePump()
	go ws.readPump()
}

// readPump reads client messages until the connection closes
func (c *wsConnection) readPump() {
	defer func() {
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keeps the connection alive
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage plans in the background so a slow plan does not block reads
func (c *wsConnection) handleMessage(message []byte) {
	var req StreamRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.sendError("invalid message: " + err.Error())
		return
	}
	if req.Type != MessagePredict {
		c.sendError("unsupported message type: " + req.Type)
		return
	}

	go func() {
		result, err := c.server.plan(c.ctx, req.PredictRequest)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		resp := planResponse(result)
		resp["type"] = MessagePlan
		c.sendJSON(resp)
	}()
}

func (c *wsConnection) sendError(reason string) {
	c.sendJSON(gin.H{"type": MessageError, "success": false, "error": reason})
}

func (c *wsConnection) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("websocket buffer full, dropping message")
	}
}
