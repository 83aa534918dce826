package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by Send after the connection has gone away
var ErrClientClosed = errors.New("server: client closed")

// Client is one live WebSocket connection. Its pointer identity is the key
// into the session registry, and it implements protocol.Conn for the
// dispatcher.
type Client struct {
	ID string

	conn   *websocket.Conn
	server *Server
	send   chan string

	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
	stopChan chan struct{}
}

func newClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		server:   s,
		send:     make(chan string, 64),
		stopChan: make(chan struct{}),
	}
}

// start launches the read and write pumps
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

// Stop tears the connection down and unregisters the session
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.server.removeClient(c)
		c.conn.Close()
	})
}

// Send queues one text message for delivery to the client. It implements
// protocol.Conn.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}

	select {
	case c.send <- text:
		return nil
	case <-c.stopChan:
		return ErrClientClosed
	}
}

// readPump reads messages and dispatches them one at a time. Dispatching
// synchronously here is what guarantees per-connection ordering: a message
// runs to completion before the next one is read.
func (c *Client) readPump() {
	defer c.Stop()

	c.conn.SetReadLimit(c.server.maxMessageSize())
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.log.Error("Read error on client %s: %v", c.ID, err)
			}
			return
		}

		c.server.log.Debug("Client %s message: %s", c.ID, message)
		c.server.dispatcher.Dispatch(context.Background(), c, message)
	}
}

// writePump delivers queued responses and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Stop()
	}()

	for {
		select {
		case <-c.stopChan:
			return

		case text := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				c.server.log.Error("Write error on client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
