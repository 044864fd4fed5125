// Package realtime runs event-based websocket namespaces. Each inbound frame
// is an Envelope naming an event; handlers registered with On receive the
// decoded payload and may reply with Conn.Emit or push to any live
// connection with Namespace.Emit.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/core/response"
)

// EventError is the outbound event used for handler failures.
const EventError = "error"

var (
	ErrConnNotFound   = errors.New("realtime: connection not found")
	ErrConnClosed     = errors.New("realtime: connection closed")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
	ErrUnknownEvent   = errors.New("realtime: unknown event")
	ErrBadPayload     = errors.New("realtime: malformed payload")
)

// EventHandler handles one inbound event.
type EventHandler func(ctx context.Context, c *Conn, data json.RawMessage) error

// NewHandler wraps a typed handler, decoding the payload into T.
func NewHandler[T any](fn func(ctx context.Context, c *Conn, in T) error) EventHandler {
	return func(ctx context.Context, c *Conn, data json.RawMessage) error {
		var in T
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &in); err != nil {
				return errors.Join(ErrBadPayload, err)
			}
		}
		return fn(ctx, c, in)
	}
}

// Namespace is a set of connections sharing one event table.
type Namespace struct {
	name     string
	handlers map[string]EventHandler
	logger   *slog.Logger

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	sendBuffer     int
	maxMessageSize int64
	upgradeOpts    []response.WebSocketOption

	onConnect    func(context.Context, *Conn)
	onDisconnect func(context.Context, *Conn)
	onEvent      func(context.Context, *Conn, string)
	encodeError  func(error) (string, any)
	gauge        func(int)

	mu    sync.RWMutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// NewNamespace creates a namespace called name.
func NewNamespace(name string, opts ...Option) *Namespace {
	n := &Namespace{
		name:           name,
		handlers:       make(map[string]EventHandler),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		pingInterval:   DefaultPingInterval,
		pongWait:       DefaultPongWait,
		writeWait:      DefaultWriteWait,
		sendBuffer:     DefaultSendBuffer,
		maxMessageSize: DefaultMaxMessageSize,
		encodeError:    defaultErrorEncoder,
		conns:          make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// On registers h for event. Register handlers before serving.
func (n *Namespace) On(event string, h EventHandler) {
	n.handlers[event] = h
}

// OnDisconnect replaces the hook run after a connection closes.
func (n *Namespace) OnDisconnect(fn func(ctx context.Context, c *Conn)) {
	n.onDisconnect = fn
}

// Emit sends an event to the connection with the given handle.
func (n *Namespace) Emit(handle, event string, data any) error {
	n.mu.RLock()
	c, ok := n.conns[handle]
	n.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}
	return c.Emit(event, data)
}

// Len returns the number of live connections.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.conns)
}

// Serve upgrades the request and runs the connection until it closes.
func (n *Namespace) Serve() handler.Response {
	opts := append([]response.WebSocketOption{
		response.WithWSErrorHandler(func(ctx context.Context, err error) {
			n.logger.WarnContext(ctx, "websocket upgrade failed",
				logger.Component("realtime"), logger.Channel(n.name), logger.Error(err))
		}),
	}, n.upgradeOpts...)
	return response.WebSocket(n.serveConn, opts...)
}

// Shutdown closes every live connection and waits for their loops to exit.
func (n *Namespace) Shutdown(ctx context.Context) error {
	n.mu.RLock()
	conns := make([]*Conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run returns a function for errgroup.Go that closes all connections when
// ctx is canceled.
func (n *Namespace) Run(ctx context.Context, shutdownTimeout time.Duration) func() error {
	return func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := n.Shutdown(sctx); err != nil {
			n.logger.Warn("namespace shutdown incomplete",
				logger.Component("realtime"), logger.Channel(n.name), logger.Error(err))
		}
		return nil
	}
}

func (n *Namespace) serveConn(parent context.Context, ws *websocket.Conn) error {
	n.wg.Add(1)
	defer n.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	c := newConn(uuid.NewString(), n, ws)
	n.add(c)
	defer n.remove(ctx, c)

	n.logger.DebugContext(ctx, "connection opened",
		logger.Component("realtime"), logger.Channel(n.name), logger.ConnHandle(c.id))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()
	defer func() {
		c.Close()
		<-writerDone
	}()

	if n.onConnect != nil {
		n.onConnect(ctx, c)
	}

	ws.SetReadLimit(n.maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(n.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(n.pongWait))
	})

	for {
		kind, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				select {
				case <-c.done:
				default:
					n.logger.DebugContext(ctx, "connection read failed",
						logger.Component("realtime"), logger.ConnHandle(c.id), logger.Error(err))
				}
			}
			return nil
		}
		_ = ws.SetReadDeadline(time.Now().Add(n.pongWait))
		if kind != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			n.reply(ctx, c, "", ErrBadPayload)
			continue
		}
		n.dispatch(ctx, c, env)
	}
}

func (n *Namespace) dispatch(ctx context.Context, c *Conn, env Envelope) {
	defer func() {
		if p := recover(); p != nil {
			n.logger.ErrorContext(ctx, "panic in event handler",
				logger.Component("realtime"),
				logger.Channel(n.name),
				logger.Event(env.Event),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			n.reply(ctx, c, env.Event, fmt.Errorf("panic in %s handler", env.Event))
		}
	}()

	h, ok := n.handlers[env.Event]
	if !ok {
		n.reply(ctx, c, env.Event, ErrUnknownEvent)
		return
	}

	if n.onEvent != nil {
		n.onEvent(ctx, c, env.Event)
	}

	if err := h(ctx, c, env.Data); err != nil {
		n.reply(ctx, c, env.Event, err)
	}
}

func (n *Namespace) reply(ctx context.Context, c *Conn, event string, err error) {
	n.logger.DebugContext(ctx, "event failed",
		logger.Component("realtime"),
		logger.Channel(n.name),
		logger.Event(event),
		logger.ConnHandle(c.id),
		logger.Error(err))

	name, data := n.encodeError(err)
	if emitErr := c.Emit(name, data); emitErr != nil && !errors.Is(emitErr, ErrConnClosed) {
		n.logger.WarnContext(ctx, "failed to send error event",
			logger.Component("realtime"), logger.ConnHandle(c.id), logger.Error(emitErr))
	}
}

func (n *Namespace) add(c *Conn) {
	n.mu.Lock()
	n.conns[c.id] = c
	n.mu.Unlock()
	if n.gauge != nil {
		n.gauge(1)
	}
}

func (n *Namespace) remove(ctx context.Context, c *Conn) {
	n.mu.Lock()
	delete(n.conns, c.id)
	n.mu.Unlock()
	if n.gauge != nil {
		n.gauge(-1)
	}

	if n.onDisconnect != nil {
		n.onDisconnect(ctx, c)
	}
	n.logger.DebugContext(ctx, "connection closed",
		logger.Component("realtime"), logger.Channel(n.name), logger.ConnHandle(c.id))
}

func (n *Namespace) logWriteError(ctx context.Context, c *Conn, err error) {
	n.logger.DebugContext(ctx, "connection write failed",
		logger.Component("realtime"), logger.Channel(n.name), logger.ConnHandle(c.id), logger.Error(err))
}

func defaultErrorEncoder(err error) (string, any) {
	msg := "internal error"
	switch {
	case errors.Is(err, ErrUnknownEvent):
		msg = "unknown event"
	case errors.Is(err, ErrBadPayload):
		msg = "malformed message"
	}
	return EventError, map[string]string{"message": msg}
}
