// Package handoff coordinates the mobile chat, transfer tokens and kiosk
// pickup. It is the only writer of a session's status and transfer fields.
package handoff

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/intent"
	"github.com/dmitrymomot/handoff/internal/metrics"
	"github.com/dmitrymomot/handoff/internal/recommend"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
	"github.com/dmitrymomot/handoff/internal/transfer"
)

// TokenService issues and redeems transfer tokens.
type TokenService interface {
	Issue(ctx context.Context, sessionID string) (transfer.Token, error)
	Validate(ctx context.Context, tokenID, signature string) (string, error)
	Expire(ctx context.Context, tokenID string) (bool, error)
}

// Registry maps identities to live connection handles.
type Registry interface {
	Register(ctx context.Context, ch registry.Channel, identity, handle string) error
	Lookup(ctx context.Context, ch registry.Channel, identity string) (string, error)
	Touch(ctx context.Context, ch registry.Channel, identity, handle string) error
	UnregisterByHandle(ctx context.Context, ch registry.Channel, handle string) (string, error)
}

// Notifier pushes an event to one live connection.
type Notifier interface {
	Emit(handle, event string, data any) error
}

// Deps are the collaborators of a Coordinator. Mobile, Kiosk, Metrics,
// Logger and Now are optional.
type Deps struct {
	Sessions    *session.Manager
	Tokens      TokenService
	Registry    Registry
	Parser      intent.Parser
	Recommender recommend.Engine
	Catalog     catalog.Repository

	Mobile Notifier
	Kiosk  Notifier

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Coordinator runs the handoff operations.
type Coordinator struct {
	Deps

	mobileLimit int
	kioskLimit  int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLimits sets how many products are recommended on each channel.
func WithLimits(mobile, kiosk int) Option {
	return func(c *Coordinator) {
		if mobile > 0 {
			c.mobileLimit = mobile
		}
		if kiosk > 0 {
			c.kioskLimit = kiosk
		}
	}
}

// New creates a Coordinator.
func New(deps Deps, opts ...Option) (*Coordinator, error) {
	if deps.Sessions == nil || deps.Tokens == nil || deps.Registry == nil ||
		deps.Parser == nil || deps.Recommender == nil || deps.Catalog == nil {
		return nil, ErrMissingDeps
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Coordinator{
		Deps:        deps,
		mobileLimit: DefaultMobileLimit,
		kioskLimit:  DefaultKioskLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a Coordinator with limits from cfg. Options
// override config values.
func NewFromConfig(cfg Config, deps Deps, opts ...Option) (*Coordinator, error) {
	return New(deps, append([]Option{WithLimits(cfg.MobileLimit, cfg.KioskLimit)}, opts...)...)
}

// MessageInput is an inbound chat message. History seeds a session created
// by this message.
type MessageInput struct {
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId"`
	Text      string            `json:"text"`
	History   []session.Message `json:"conversationHistory,omitempty"`
	// Handle is the mobile connection the message arrived on, if any.
	Handle string `json:"-"`
}

// MessageReply is the assistant's answer to a message.
type MessageReply struct {
	SessionID       string            `json:"sessionId"`
	UserID          string            `json:"userId"`
	Message         session.Message   `json:"message"`
	Intent          session.Intent    `json:"parsedIntent"`
	Tags            []string          `json:"tags"`
	Summary         string            `json:"summary"`
	Confidence      float64           `json:"confidence"`
	Recommendations []catalog.Product `json:"recommendations"`
	Explanations    []string          `json:"explanations"`
}

// HandleMessage appends the message to its session, re-derives the intent,
// recommends products and answers. The session is saved once, after the
// reply is built.
func (c *Coordinator) HandleMessage(ctx context.Context, in MessageInput) (MessageReply, error) {
	now := c.Now()
	userMsg, err := session.NewMessage(in.Text, session.SenderUser, now)
	if err != nil {
		return MessageReply{}, err
	}

	sess, created, err := c.Sessions.LoadOrCreate(ctx, in.SessionID, in.UserID)
	if err != nil {
		return MessageReply{}, err
	}
	if !sess.IsActive() {
		return MessageReply{}, ErrSessionInactive
	}
	if created {
		for _, m := range in.History {
			if m.Text != "" {
				sess.Append(m)
			}
		}
	}

	parsed := c.Parser.Parse(userMsg.Text, sess.History)
	sess.Append(userMsg)
	sess.Intent = sess.Intent.Merge(parsed.Intent)
	sess.AddTags(parsed.Tags...)

	rec := c.Recommender.Recommend(ctx, sess.Intent, c.mobileLimit)
	aiMsg, err := session.NewMessage(replyText(parsed.Summary, rec), session.SenderAI, now)
	if err != nil {
		return MessageReply{}, err
	}
	sess.Append(aiMsg)

	if err := c.Sessions.Save(ctx, sess); err != nil {
		return MessageReply{}, err
	}
	c.Metrics.MessageHandled(registry.Mobile.String())

	if in.Handle != "" {
		c.bestEffortRegister(ctx, registry.Mobile, sess.UserID, in.Handle)
	}

	c.Logger.DebugContext(ctx, "message handled",
		logger.Component("handoff"),
		logger.SessionID(sess.ID),
		logger.Count("recommendations", len(rec.Products)))

	return MessageReply{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Message:         aiMsg,
		Intent:          sess.Intent,
		Tags:            sess.Tags,
		Summary:         parsed.Summary,
		Confidence:      parsed.Confidence,
		Recommendations: rec.Products,
		Explanations:    rec.Explanations,
	}, nil
}

// GetSession returns the stored session.
func (c *Coordinator) GetSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := c.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// DeleteSession removes the session and burns its outstanding token.
func (c *Coordinator) DeleteSession(ctx context.Context, id string) error {
	sess, err := c.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if sess.QRCode != "" {
		if _, err := c.Tokens.Expire(ctx, sess.QRCode); err != nil {
			c.Logger.WarnContext(ctx, "failed to expire token of deleted session",
				logger.Component("handoff"), logger.SessionID(id), logger.Error(err))
		}
	}
	return nil
}

// Products lists the catalog.
func (c *Coordinator) Products(ctx context.Context) ([]catalog.Product, error) {
	return c.Catalog.List(ctx)
}

// Product returns one catalog item.
func (c *Coordinator) Product(ctx context.Context, id string) (catalog.Product, error) {
	if id == "" {
		return catalog.Product{}, ErrInvalidInput
	}
	p, err := c.Catalog.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Product{}, ErrProductNotFound
	}
	return p, err
}
