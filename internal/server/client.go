// Package server manages individual duplex connections, handling read/write
// pumps and lifecycle control for each client.
package server

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client represents one live duplex connection. A client starts
// unidentified; it becomes identified when a CONNECT frame binds it to a
// user id in the hub's registry, and closed when the connection ends.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
}

// NewClient creates a Client for the given connection. The send channel is
// buffered so a momentarily slow reader does not stall the fan-out path.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		closed:         false,
		maxMessageSize: maxMessageSize,
	}
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// logReadError logs an appropriate message for the error that ended the read
// loop.
func (c *Client) logReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Frame from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
}

// readPump forwards every raw inbound frame to the hub's event loop, where
// all validation and state changes happen. Closing the connection at any
// time is safe: the deferred unregister runs the close path exactly once.
func (c *Client) readPump() {
	defer func() {
		// The hub may already have stopped draining its channels during
		// shutdown; never block the pump goroutine on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawFrame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		select {
		case c.hub.inbound <- inboundFrame{client: c, data: rawFrame}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writePump drains the send channel onto the wire, one frame per websocket
// message so receivers can decode each frame independently, and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}

			if !ok {
				c.writeCloseMessage()
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing message to %s: %v", c.addr, err)
				}
				return
			}

		case <-ticker.C:
			if !c.handlePing() {
				return
			}

		case <-c.hub.ctx.Done():
			c.writeCloseMessage()
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// writeCloseMessage sends a close message to the client.
func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
