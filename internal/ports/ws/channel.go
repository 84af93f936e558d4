// Package ws serves the browser-facing websocket transport. Each
// connection is wrapped in a Conn that satisfies the engine's channel
// contract, with a buffered writer goroutine so a slow socket never blocks
// the caller.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"truco/internal/ports"
)

const (
	sendBuffer      = 64
	pingInterval    = 15 * time.Second
	teardownTimeout = 5 * time.Second
)

// Msg is the wire envelope for both directions.
type Msg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

// ErrChannelClosed is returned by Send after the connection is gone.
var ErrChannelClosed = errors.New("websocket channel closed")

// Conn adapts one websocket connection to the engine's notification
// channel. Sends are queued to a writer goroutine; a full queue faults the
// channel instead of blocking gameplay.
type Conn struct {
	id    string
	sock  *websocket.Conn
	send  chan []byte
	state atomic.Int32
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{id: id, sock: sock, send: make(chan []byte, sendBuffer)}
}

// Send queues one notice for delivery.
func (c *Conn) Send(ctx context.Context, n ports.Notice) error {
	if c.State() != ports.ChannelOpen {
		return ErrChannelClosed
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(Msg{T: n.Event, M: payload})
	if err != nil {
		return err
	}
	select {
	case c.send <- b:
		return nil
	case <-ctx.Done():
		c.state.Store(int32(ports.ChannelFaulted))
		return ctx.Err()
	}
}

// State reports the channel health.
func (c *Conn) State() ports.ChannelState {
	return ports.ChannelState(c.state.Load())
}

// close marks the channel closed. The send queue is left open so a racing
// Send cannot panic; the writer drains out when its context is canceled.
func (c *Conn) close() {
	c.state.CompareAndSwap(int32(ports.ChannelOpen), int32(ports.ChannelClosed))
}

// writeLoop drains the send queue onto the socket and keeps the connection
// alive with pings. It owns all writes to the socket.
func (c *Conn) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.sock.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case b := <-c.send:
			if err := c.sock.Write(ctx, websocket.MessageText, b); err != nil {
				c.state.Store(int32(ports.ChannelFaulted))
				return
			}
		case <-ping.C:
			if err := c.sock.Ping(ctx); err != nil {
				c.state.Store(int32(ports.ChannelFaulted))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
