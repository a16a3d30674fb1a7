package transport

import (
	"chatline/domain/event"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeWS stands in for a websocket: written frames land on a channel.
type pipeWS struct {
	frames chan []byte
}

func newPipeWS() *pipeWS {
	return &pipeWS{frames: make(chan []byte, 16)}
}

func (p *pipeWS) ReadMessage() (int, []byte, error) {
	return 0, nil, fmt.Errorf("closed")
}

func (p *pipeWS) WriteMessage(_ int, data []byte) error {
	p.frames <- data
	return nil
}

func (p *pipeWS) Close() error { return nil }

func (p *pipeWS) next(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-p.frames:
		return data
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return nil
	}
}

func TestConn_Push_Reaches_The_Wire(t *testing.T) {
	req := require.New(t)
	ws := newPipeWS()
	conn := NewConn(ws, 4, slog.Default())
	go conn.WritePump()
	defer conn.Close()

	req.True(conn.Push(event.Outbound{Event: event.Connected, Data: "+61400000001"}))

	var out event.Outbound
	req.NoError(json.Unmarshal(ws.next(t), &out))
	req.Equal(event.Connected, out.Event)
	req.Equal("+61400000001", out.Data)
}

func TestConn_Push_Drops_When_Buffer_Full(t *testing.T) {
	req := require.New(t)
	// Pump not running: the single slot fills and the next push drops
	conn := NewConn(newPipeWS(), 1, slog.Default())
	defer conn.Close()

	req.True(conn.Push(event.Outbound{Event: event.NewMessage}))
	req.False(conn.Push(event.Outbound{Event: event.NewMessage}))
}

func TestConn_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	conn := NewConn(newPipeWS(), 4, slog.Default())

	req.True(conn.Alive())
	conn.Close()
	conn.Close() // second teardown must be safe

	req.False(conn.Alive())
	req.False(conn.Push(event.Outbound{Event: event.NewMessage}))
}
