package transport

import (
	"chatline/domain/event"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// ConnLike is the slice of *websocket.Conn the transport needs; tests
// substitute an in-memory pipe.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn wraps one websocket connection with a buffered outbound queue.
// Pushes are non-blocking so a slow consumer can never stall another
// connection's flow; a dropped live push is re-pulled by the client on
// its next fetch.
type Conn struct {
	ws   ConnLike
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func NewConn(ws ConnLike, bufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// Push implements contract.EventSink. False means the connection is
// closed or its buffer is full.
func (c *Conn) Push(e event.Outbound) bool {
	data, err := json.Marshal(e)
	if err != nil {
		c.log.Error("Dropping unmarshalable outbound event", "event", e.Event, "error", err)
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("Outbound buffer full, dropping event", "event", e.Event)
		return false
	}
}

func (c *Conn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// WritePump drains the outbound queue onto the wire. Runs in its own
// goroutine per connection; exits when Close is called.
func (c *Conn) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("Write failed, closing connection", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close is idempotent and safe from any goroutine.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
