// Package registry maps logical identities to live connection handles, one
// namespace per channel. The last registration for an identity wins.
//
// Each registration writes two keys with the same heartbeat TTL:
//
//	<prefix><channel>:id:<identity>   -> handle
//	<prefix><channel>:conn:<handle>   -> identity
//
// The reverse key turns disconnect cleanup into a direct lookup. When it is
// missing, the forward namespace is scanned instead.
package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/kv"
)

// Channel is a connection namespace.
type Channel string

const (
	Mobile Channel = "mobile"
	Kiosk  Channel = "kiosk"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == Mobile || c == Kiosk
}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel converts s to a Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidChannel
	}
	return c, nil
}

// Registry is safe for concurrent use; all state lives in the store.
type Registry struct {
	store  kv.Store
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the heartbeat TTL. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Registry on store.
func New(store kv.Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	r := &Registry{
		store:  store,
		ttl:    DefaultTTL,
		prefix: DefaultKeyPrefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFromConfig creates a Registry from cfg. Options override config values.
func NewFromConfig(cfg Config, store kv.Store, opts ...Option) (*Registry, error) {
	return New(store, append([]Option{WithTTL(cfg.TTL), WithKeyPrefix(cfg.KeyPrefix)}, opts...)...)
}

// Register binds identity to handle on channel, replacing any earlier
// binding in either direction.
func (r *Registry) Register(ctx context.Context, ch Channel, identity, handle string) error {
	if err := validate(ch, identity, handle); err != nil {
		return err
	}

	fwd := r.forwardKey(ch, identity)
	rev := r.reverseKey(ch, handle)

	prev, err := r.store.Get(ctx, fwd)
	switch {
	case err == nil:
		if string(prev) != handle {
			if _, err := r.store.DeleteIfValue(ctx, r.reverseKey(ch, string(prev)), []byte(identity)); err != nil {
				return r.unavailable(ctx, "register", err)
			}
		}
	case !errors.Is(err, kv.ErrNotFound):
		return r.unavailable(ctx, "register", err)
	}

	// The same connection may re-identify under a new identity.
	prevIdentity, err := r.store.Get(ctx, rev)
	switch {
	case err == nil:
		if string(prevIdentity) != identity {
			if _, err := r.store.DeleteIfValue(ctx, r.forwardKey(ch, string(prevIdentity)), []byte(handle)); err != nil {
				return r.unavailable(ctx, "register", err)
			}
		}
	case !errors.Is(err, kv.ErrNotFound):
		return r.unavailable(ctx, "register", err)
	}

	if err := r.store.Set(ctx, fwd, []byte(handle), r.ttl); err != nil {
		return r.unavailable(ctx, "register", err)
	}
	if err := r.store.Set(ctx, rev, []byte(identity), r.ttl); err != nil {
		return r.unavailable(ctx, "register", err)
	}

	r.logger.DebugContext(ctx, "connection registered",
		logger.Component("registry"),
		logger.Channel(ch.String()),
		logger.Identity(identity),
		logger.ConnHandle(handle),
	)
	return nil
}

// Lookup returns the handle currently bound to identity.
func (r *Registry) Lookup(ctx context.Context, ch Channel, identity string) (string, error) {
	if !ch.Valid() {
		return "", ErrInvalidChannel
	}
	if identity == "" {
		return "", ErrInvalidIdentity
	}

	handle, err := r.store.Get(ctx, r.forwardKey(ch, identity))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", r.unavailable(ctx, "lookup", err)
	}
	return string(handle), nil
}

// Touch refreshes the TTL of identity's binding to handle. A lapsed binding
// is recreated; a binding already taken over by another handle is left alone.
func (r *Registry) Touch(ctx context.Context, ch Channel, identity, handle string) error {
	if err := validate(ch, identity, handle); err != nil {
		return err
	}

	fwd := r.forwardKey(ch, identity)
	current, err := r.store.Get(ctx, fwd)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return r.Register(ctx, ch, identity, handle)
		}
		return r.unavailable(ctx, "touch", err)
	}
	if string(current) != handle {
		return nil
	}

	if _, err := r.store.Expire(ctx, fwd, r.ttl); err != nil {
		return r.unavailable(ctx, "touch", err)
	}
	ok, err := r.store.Expire(ctx, r.reverseKey(ch, handle), r.ttl)
	if err != nil {
		return r.unavailable(ctx, "touch", err)
	}
	if !ok {
		if err := r.store.Set(ctx, r.reverseKey(ch, handle), []byte(identity), r.ttl); err != nil {
			return r.unavailable(ctx, "touch", err)
		}
	}
	return nil
}

// UnregisterByHandle removes the binding owned by handle and returns the
// identity it belonged to. The forward key is deleted only while it still
// points at handle, so a newer connection for the same identity survives.
func (r *Registry) UnregisterByHandle(ctx context.Context, ch Channel, handle string) (string, error) {
	if !ch.Valid() {
		return "", ErrInvalidChannel
	}
	if handle == "" {
		return "", ErrInvalidHandle
	}

	identity, err := r.store.Take(ctx, r.reverseKey(ch, handle))
	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
		identity, err = r.scanForHandle(ctx, ch, handle)
		if err != nil {
			return "", err
		}
	default:
		return "", r.unavailable(ctx, "unregister", err)
	}

	removed, err := r.store.DeleteIfValue(ctx, r.forwardKey(ch, string(identity)), []byte(handle))
	if err != nil {
		return "", r.unavailable(ctx, "unregister", err)
	}

	r.logger.DebugContext(ctx, "connection unregistered",
		logger.Component("registry"),
		logger.Channel(ch.String()),
		logger.Identity(string(identity)),
		logger.ConnHandle(handle),
		slog.Bool("binding_removed", removed),
	)
	return string(identity), nil
}

var errFound = errors.New("found")

func (r *Registry) scanForHandle(ctx context.Context, ch Channel, handle string) ([]byte, error) {
	prefix := r.forwardKey(ch, "")

	var identity string
	err := r.store.Scan(ctx, prefix, func(key string) error {
		v, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return nil
			}
			return err
		}
		if string(v) == handle {
			identity = strings.TrimPrefix(key, prefix)
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, r.unavailable(ctx, "unregister", err)
	}
	if identity == "" {
		return nil, ErrNotFound
	}
	return []byte(identity), nil
}

func (r *Registry) forwardKey(ch Channel, identity string) string {
	return r.prefix + string(ch) + ":id:" + identity
}

func (r *Registry) reverseKey(ch Channel, handle string) string {
	return r.prefix + string(ch) + ":conn:" + handle
}

func (r *Registry) unavailable(ctx context.Context, action string, err error) error {
	r.logger.WarnContext(ctx, "registry store call failed",
		logger.Component("registry"), logger.Action(action), logger.Error(err))
	return errors.Join(ErrStoreUnavailable, err)
}

func validate(ch Channel, identity, handle string) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	if identity == "" {
		return ErrInvalidIdentity
	}
	if handle == "" {
		return ErrInvalidHandle
	}
	return nil
}
