package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spindleworks/novem/store"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Per-client event buffer; events past this are dropped, not queued
	sendBuffer = 256
)

// Client represents a WebSocket client connection subscribed to store events
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan store.Event
	id        string
	closeOnce sync.Once // Prevents double-close panics
}

// controlMessage is the only inbound traffic the event stream accepts
type controlMessage struct {
	Type string `json:"type"`
}

// readPump drains inbound frames. The stream is one-way; reads exist to
// service pings and detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.server.logger.Debugw("Read pump started", "client_id", c.id)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.server.logger.Warnw("JSON unmarshal error",
				"error", err.Error(),
				"client_id", c.id,
			)
			continue
		}

		switch msg.Type {
		case "ping":
			// Deadline already refreshed by the pong handler
		default:
			c.server.logger.Debugw("Unknown message type",
				"type", msg.Type,
				"client_id", c.id,
			)
		}
	}
}

// handleReadError logs unexpected WebSocket read errors.
// Expected closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error",
			"error", err.Error(),
			"client_id", c.id,
		)
	}
}

// writePump writes store events to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.server.logger.Debugw("Write pump started", "client_id", c.id)

	for {
		select {
		case <-c.server.ctx.Done():
			c.server.logger.Debugw("Write pump stopping due to server shutdown", "client_id", c.id)
			return
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Warnw("Event write error",
					"error", err.Error(),
					"client_id", c.id,
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close safely closes the client's send channel
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.send != nil {
			close(c.send)
		}
	})
}
