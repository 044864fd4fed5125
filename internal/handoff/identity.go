package handoff

import (
	"context"
	"errors"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/registry"
)

// Identified confirms a registration.
type Identified struct {
	Channel  registry.Channel `json:"channel"`
	Identity string           `json:"identity"`
}

// Identify binds identity to the connection handle on ch. The latest
// connection wins.
func (c *Coordinator) Identify(ctx context.Context, ch registry.Channel, identity, handle string) (Identified, error) {
	if err := c.Registry.Register(ctx, ch, identity, handle); err != nil {
		return Identified{}, err
	}

	c.Logger.DebugContext(ctx, "connection identified",
		logger.Component("handoff"),
		logger.Channel(ch.String()),
		logger.Identity(identity),
		logger.ConnHandle(handle))
	return Identified{Channel: ch, Identity: identity}, nil
}

// Heartbeat refreshes the registration of identity. Failures are logged
// only.
func (c *Coordinator) Heartbeat(ctx context.Context, ch registry.Channel, identity, handle string) {
	if identity == "" || handle == "" {
		return
	}
	if err := c.Registry.Touch(ctx, ch, identity, handle); err != nil {
		c.Logger.DebugContext(ctx, "heartbeat failed",
			logger.Component("handoff"), logger.Channel(ch.String()), logger.Identity(identity), logger.Error(err))
	}
}

// Disconnect drops the registration held by handle and returns its
// identity, if any.
func (c *Coordinator) Disconnect(ctx context.Context, ch registry.Channel, handle string) (string, error) {
	identity, err := c.Registry.UnregisterByHandle(ctx, ch, handle)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return "", nil
	case err != nil:
		c.Logger.WarnContext(ctx, "failed to unregister connection",
			logger.Component("handoff"), logger.Channel(ch.String()), logger.ConnHandle(handle), logger.Error(err))
		return "", err
	}

	c.Logger.DebugContext(ctx, "connection unregistered",
		logger.Component("handoff"), logger.Channel(ch.String()), logger.Identity(identity))
	return identity, nil
}

func (c *Coordinator) bestEffortRegister(ctx context.Context, ch registry.Channel, identity, handle string) {
	if _, err := c.Identify(ctx, ch, identity, handle); err != nil {
		c.Logger.WarnContext(ctx, "implicit registration failed",
			logger.Component("handoff"), logger.Channel(ch.String()), logger.Identity(identity), logger.Error(err))
	}
}
