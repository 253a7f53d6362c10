package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	sendBacklog = 128
)

// Close codes sent to clients in the 4000-4999 private range, plus the
// standard going-away code on shutdown.
const (
	CloseSessionReplaced = 4001
	CloseSlowConsumer    = 4008
	CloseServerShutdown  = websocket.CloseGoingAway
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrSlowConsumer     = errors.New("realtime: send backlog full")
)

// Connection is one websocket session of a user. Writes are queued and
// performed by a single writer goroutine; a client that cannot keep up with
// the backlog is disconnected rather than slowing down delivery.
type Connection struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	out    chan []byte
	closed chan struct{}
	once   sync.Once
	wmu    sync.Mutex // serializes frames between the writer and Close
}

// NewConnection wraps ws as a new session of userID.
func NewConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		out:    make(chan []byte, sendBacklog),
		closed: make(chan struct{}),
	}
}

// Start launches the writer. Call it once.
func (c *Connection) Start() {
	go c.writer()
}

// Send queues payload without blocking.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.out <- payload:
		return nil
	default:
		c.Close(CloseSlowConsumer, "send backlog full")
		return ErrSlowConsumer
	}
}

// Close sends a close frame with code and reason, then closes the socket.
// out stays open so a racing Send never writes to a closed channel.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.wmu.Unlock()
		_ = c.ws.Close()
	})
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.closed }

func (c *Connection) writer() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-c.closed:
			return
		case payload := <-c.out:
			err = c.write(websocket.TextMessage, payload)
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			c.Close(websocket.CloseInternalServerErr, "write failed")
			return
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
