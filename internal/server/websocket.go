package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket. Every text frame is one logical
// line; the reply is its normalized entry as JSON.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)
	source := c.Query("source")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		entry := s.record(c.Request.Context(), model.RawLine{Text: string(data), Source: source})

		if err := conn.WriteJSON(entry); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// handleStream upgrades to WebSocket and streams every entry the server
// normalizes, from any client, as JSON. Slow clients lose entries rather
// than stall ingestion.
func (s *Server) handleStream(c *gin.Context) {
	// Subscribe before the handshake completes so no entry published after
	// the client connects is missed.
	entries := s.feed.Subscribe()
	defer s.feed.Unsubscribe(entries)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Read pump: detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.feed.Unsubscribe(entries)
				return
			}
		}
	}()

	// Write pump: ends when the client leaves or the feed stops.
	for entry := range entries {
		if err := conn.WriteJSON(entry); err != nil {
			logger.Debug("websocket stream write failed", "error", err)
			return
		}
	}
}
