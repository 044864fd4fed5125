package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live websocket connection. Emit is safe for concurrent use;
// inbound events are handled sequentially on the read loop.
type Conn struct {
	id string
	ns *Namespace
	ws *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	values map[string]string
}

func newConn(id string, ns *Namespace, ws *websocket.Conn) *Conn {
	return &Conn{
		id:     id,
		ns:     ns,
		ws:     ws,
		send:   make(chan []byte, ns.sendBuffer),
		done:   make(chan struct{}),
		values: make(map[string]string),
	}
}

// ID is the connection handle.
func (c *Conn) ID() string {
	return c.id
}

// Namespace returns the namespace name.
func (c *Conn) Namespace() string {
	return c.ns.name
}

// Set stores a value on the connection.
func (c *Conn) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns a value stored with Set.
func (c *Conn) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Emit queues an event for the peer. A full queue closes the connection.
func (c *Conn) Emit(event string, data any) error {
	frame, err := encode(event, data)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.Close()
		return ErrSendBufferFull
	}
}

// Close terminates the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.SetReadDeadline(time.Now())
	})
}

// writePump owns all writes to ws.
func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.ns.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.ns.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.ns.logWriteError(ctx, c, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.ns.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.drain()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.ns.writeWait))
			return
		}
	}
}

// drain flushes frames queued before the close.
func (c *Conn) drain() {
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.ns.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Envelope is the wire frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
