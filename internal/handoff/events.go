package handoff

import (
	"cmp"
	"context"
	"encoding/json"

	"github.com/dmitrymomot/handoff/internal/realtime"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
)

// identityKey holds the identity a connection registered as.
const identityKey = "identity"

// messageRequest accepts "message" as an alias of "text".
type messageRequest struct {
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId"`
	Text      string            `json:"text"`
	Message   string            `json:"message"`
	History   []session.Message `json:"conversationHistory"`
}

func (m messageRequest) input(handle string) MessageInput {
	return MessageInput{
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Text:      cmp.Or(m.Text, m.Message),
		History:   m.History,
		Handle:    handle,
	}
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type identifyRequest struct {
	Identity string `json:"identity"`
	UserID   string `json:"userId"`
	KioskID  string `json:"kioskId"`
}

// Attach registers the coordinator's event handlers on both namespaces and
// drops registrations when their connections close.
func (c *Coordinator) Attach(mobile, kiosk *realtime.Namespace) {
	if mobile != nil {
		c.on(mobile, registry.Mobile, EventMessage, realtime.NewHandler(c.onMessage))
		c.on(mobile, registry.Mobile, EventRequestTransfer, realtime.NewHandler(c.onRequestTransfer))
		c.on(mobile, registry.Mobile, EventIdentify, c.onIdentify(registry.Mobile))
		mobile.OnDisconnect(c.onDisconnect(registry.Mobile))
	}
	if kiosk != nil {
		c.on(kiosk, registry.Kiosk, EventScan, realtime.NewHandler(c.onScan))
		c.on(kiosk, registry.Kiosk, EventAssociateRequest, realtime.NewHandler(c.onAssociate))
		c.on(kiosk, registry.Kiosk, EventIdentify, c.onIdentify(registry.Kiosk))
		kiosk.OnDisconnect(c.onDisconnect(registry.Kiosk))
	}
}

// on refreshes the sender's registration before every event.
func (c *Coordinator) on(ns *realtime.Namespace, ch registry.Channel, event string, h realtime.EventHandler) {
	ns.On(event, func(ctx context.Context, conn *realtime.Conn, data json.RawMessage) error {
		c.Heartbeat(ctx, ch, conn.Get(identityKey), conn.ID())
		return h(ctx, conn, data)
	})
}

func (c *Coordinator) onMessage(ctx context.Context, conn *realtime.Conn, req messageRequest) error {
	reply, err := c.HandleMessage(ctx, req.input(conn.ID()))
	if err != nil {
		return err
	}
	conn.Set(identityKey, reply.UserID)
	return conn.Emit(EventAIResponse, reply)
}

func (c *Coordinator) onRequestTransfer(ctx context.Context, conn *realtime.Conn, req sessionRequest) error {
	ticket, err := c.RequestTransfer(ctx, req.SessionID)
	if err != nil {
		return err
	}
	return conn.Emit(EventTokenIssued, ticket)
}

func (c *Coordinator) onScan(ctx context.Context, conn *realtime.Conn, in ScanInput) error {
	in.KioskID = cmp.Or(in.KioskID, conn.Get(identityKey))
	snap, err := c.CompleteTransfer(ctx, in)
	if err != nil {
		return err
	}
	return conn.Emit(EventSessionData, snap)
}

func (c *Coordinator) onAssociate(ctx context.Context, conn *realtime.Conn, in AssociateInput) error {
	in.KioskID = cmp.Or(in.KioskID, conn.Get(identityKey))
	req, err := c.RequestAssociate(ctx, in)
	if err != nil {
		return err
	}
	return conn.Emit(EventAssociateRequested, req)
}

func (c *Coordinator) onIdentify(ch registry.Channel) realtime.EventHandler {
	return realtime.NewHandler(func(ctx context.Context, conn *realtime.Conn, req identifyRequest) error {
		identity := req.Identity
		switch ch {
		case registry.Mobile:
			identity = cmp.Or(identity, req.UserID)
		case registry.Kiosk:
			identity = cmp.Or(identity, req.KioskID)
		}

		ack, err := c.Identify(ctx, ch, identity, conn.ID())
		if err != nil {
			return err
		}
		conn.Set(identityKey, identity)
		return conn.Emit(EventIdentified, ack)
	})
}

func (c *Coordinator) onDisconnect(ch registry.Channel) func(context.Context, *realtime.Conn) {
	return func(ctx context.Context, conn *realtime.Conn) {
		if conn.Get(identityKey) == "" {
			return
		}
		_, _ = c.Disconnect(ctx, ch, conn.ID())
	}
}
