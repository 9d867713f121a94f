package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type connState int

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosed
)

// Client is one websocket connection. Outbound frames go through send and
// are written only by writePump.
type Client struct {
	ID     string
	UserID string

	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	state connState

	// rooms is guarded by Manager.mu.
	rooms map[string]struct{}

	// presenceMu orders this connection's online and offline broadcasts.
	presenceMu sync.Mutex

	closeCode    int
	closeOnce    sync.Once
	teardownOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:        uuid.New().String(),
		conn:      conn,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		state:     stateConnecting,
		rooms:     make(map[string]struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
}

func (c *Client) ConnID() string {
	return c.ID
}

// Deliver queues payload without blocking. It returns false when the
// connection is closing or its queue is full.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown asks writePump to flush what is queued, send a close frame with
// code and drop the transport. Only the first call has an effect.
func (c *Client) shutdown(code int) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		close(c.done)
	})
}

func (c *Client) write(messageType int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// writePump owns every write on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure)
				return
			}

		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, ""))
			return
		}
	}
}

// flush writes whatever is still queued. It stops at the first write error.
func (c *Client) flush() {
	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
