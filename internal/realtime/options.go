package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/handoff/core/response"
)

const (
	DefaultPingInterval   = 25 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultSendBuffer     = 32
	DefaultMaxMessageSize = 64 << 10
)

// Option configures a Namespace.
type Option func(*Namespace)

func WithLogger(l *slog.Logger) Option {
	return func(n *Namespace) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithKeepalive sets the ping interval and how long a silent peer is kept.
// pongWait must exceed pingInterval.
func WithKeepalive(pingInterval, pongWait time.Duration) Option {
	return func(n *Namespace) {
		if pingInterval > 0 && pongWait > pingInterval {
			n.pingInterval = pingInterval
			n.pongWait = pongWait
		}
	}
}

func WithWriteWait(d time.Duration) Option {
	return func(n *Namespace) {
		if d > 0 {
			n.writeWait = d
		}
	}
}

// WithSendBuffer sets the per-connection outbound queue length. A peer that
// lets the queue fill up is disconnected.
func WithSendBuffer(size int) Option {
	return func(n *Namespace) {
		if size > 0 {
			n.sendBuffer = size
		}
	}
}

func WithMaxMessageSize(size int64) Option {
	return func(n *Namespace) {
		if size > 0 {
			n.maxMessageSize = size
		}
	}
}

// WithOnConnect runs after the connection is registered and before reading.
func WithOnConnect(fn func(ctx context.Context, c *Conn)) Option {
	return func(n *Namespace) {
		n.onConnect = fn
	}
}

// WithOnDisconnect runs once after the connection is closed.
func WithOnDisconnect(fn func(ctx context.Context, c *Conn)) Option {
	return func(n *Namespace) {
		n.onDisconnect = fn
	}
}

// WithOnEvent runs before every dispatched inbound event.
func WithOnEvent(fn func(ctx context.Context, c *Conn, event string)) Option {
	return func(n *Namespace) {
		n.onEvent = fn
	}
}

// WithErrorEncoder maps handler errors to the outbound event and payload.
func WithErrorEncoder(fn func(err error) (event string, data any)) Option {
	return func(n *Namespace) {
		if fn != nil {
			n.encodeError = fn
		}
	}
}

// WithConnGauge receives +1 and -1 as connections come and go.
func WithConnGauge(fn func(delta int)) Option {
	return func(n *Namespace) {
		n.gauge = fn
	}
}

// WithUpgradeOptions passes options to the websocket upgrade.
func WithUpgradeOptions(opts ...response.WebSocketOption) Option {
	return func(n *Namespace) {
		n.upgradeOpts = append(n.upgradeOpts, opts...)
	}
}
