package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/metrics"
	"github.com/dmitrymomot/handoff/internal/registry"
	"github.com/dmitrymomot/handoff/internal/session"
	"github.com/dmitrymomot/handoff/internal/transfer"
)

// Ticket is the token material handed to the mobile client for display.
type Ticket struct {
	TokenID   string           `json:"tokenId"`
	Signature string           `json:"signature"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Payload   transfer.Payload `json:"payload"`
	QRCode    string           `json:"qrCode"`
}

// ScanInput is a kiosk's attempt to pick up a session.
type ScanInput struct {
	TokenID   string `json:"tokenId"`
	Signature string `json:"signature"`
	KioskID   string `json:"kioskId"`
}

// Snapshot is the full session state delivered to the kiosk.
type Snapshot struct {
	SessionID       string            `json:"sessionId"`
	UserID          string            `json:"userId"`
	Status          session.Status    `json:"status"`
	History         []session.Message `json:"conversationHistory"`
	Intent          session.Intent    `json:"parsedIntent"`
	Tags            []string          `json:"tags"`
	Recommendations []catalog.Product `json:"recommendations"`
	Explanations    []string          `json:"explanations"`
	Confidence      float64           `json:"confidence"`
	KioskID         string            `json:"kioskId,omitempty"`
	TransferredAt   time.Time         `json:"transferredAt"`
}

// TransferNotice tells the mobile client its session moved.
type TransferNotice struct {
	SessionID     string    `json:"sessionId"`
	KioskID       string    `json:"kioskId,omitempty"`
	TransferredAt time.Time `json:"transferredAt"`
}

// RequestTransfer issues a token for an active session and records it on
// the session. The status does not change.
func (c *Coordinator) RequestTransfer(ctx context.Context, sessionID string) (Ticket, error) {
	if sessionID == "" {
		return Ticket{}, session.ErrInvalidID
	}

	sess, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return Ticket{}, err
	}
	if !sess.IsActive() {
		return Ticket{}, ErrSessionInactive
	}

	tok, err := c.Tokens.Issue(ctx, sessionID)
	if err != nil {
		if errors.Is(err, transfer.ErrMissingSecret) {
			c.Logger.ErrorContext(ctx, "transfer requested without a signing secret",
				logger.Component("handoff"), logger.SessionID(sessionID))
		}
		return Ticket{}, err
	}

	sess.SetTransferToken(tok.ID, tok.ExpiresAt)
	if err := c.Sessions.Save(ctx, sess); err != nil {
		// A token whose session never learned about it must not stay usable.
		if _, expErr := c.Tokens.Expire(ctx, tok.ID); expErr != nil {
			c.Logger.WarnContext(ctx, "failed to expire orphaned token",
				logger.Component("handoff"), logger.TokenID(tok.ID), logger.Error(expErr))
		}
		return Ticket{}, err
	}
	c.Metrics.TokenIssued()

	c.Logger.InfoContext(ctx, "transfer token issued",
		logger.Component("handoff"), logger.SessionID(sessionID), logger.TokenID(tok.ID))

	return Ticket{
		TokenID:   tok.ID,
		Signature: tok.Signature,
		ExpiresAt: tok.ExpiresAt,
		Payload:   transfer.Payload{TokenID: tok.ID, Signature: tok.Signature},
		QRCode:    tok.Image,
	}, nil
}

// CompleteTransfer redeems a scanned token and hands its session to the
// kiosk. The token is consumed whatever the outcome. The mobile owner is
// notified when connected.
func (c *Coordinator) CompleteTransfer(ctx context.Context, in ScanInput) (Snapshot, error) {
	sessionID, err := c.Tokens.Validate(ctx, in.TokenID, in.Signature)
	if err != nil {
		c.Metrics.TokenRejected(rejectReason(err))
		return Snapshot{}, err
	}
	c.Metrics.TokenRedeemed()

	sess, err := c.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.Logger.WarnContext(ctx, "redeemed token points at a missing session",
				logger.Component("handoff"), logger.SessionID(sessionID), logger.TokenID(in.TokenID))
		}
		return Snapshot{}, err
	}

	if err := sess.MarkTransferred(in.KioskID, c.Now()); err != nil {
		return Snapshot{}, ErrSessionInactive
	}
	if err := c.Sessions.Save(ctx, sess); err != nil {
		return Snapshot{}, err
	}
	c.Metrics.TransferCompleted()

	c.Logger.InfoContext(ctx, "session transferred",
		logger.Component("handoff"),
		logger.SessionID(sess.ID),
		logger.Identity(in.KioskID))

	rec := c.Recommender.Recommend(ctx, sess.Intent, c.kioskLimit)
	c.notifyMobile(ctx, sess)

	return Snapshot{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		History:         sess.History,
		Intent:          sess.Intent,
		Tags:            sess.Tags,
		Recommendations: rec.Products,
		Explanations:    rec.Explanations,
		Confidence:      rec.Confidence,
		KioskID:         sess.KioskID,
		TransferredAt:   sess.TransferredAt,
	}, nil
}

// ValidateToken redeems a token without a kiosk connection. When the kiosk
// identity is connected, the snapshot is also pushed to it.
func (c *Coordinator) ValidateToken(ctx context.Context, in ScanInput) (Snapshot, error) {
	snap, err := c.CompleteTransfer(ctx, in)
	if err != nil {
		return Snapshot{}, err
	}

	if c.Kiosk != nil && in.KioskID != "" {
		handle, err := c.Registry.Lookup(ctx, registry.Kiosk, in.KioskID)
		if err == nil {
			if err := c.Kiosk.Emit(handle, EventSessionData, snap); err != nil {
				c.Logger.DebugContext(ctx, "kiosk push not delivered",
					logger.Component("handoff"), logger.ConnHandle(handle), logger.Error(err))
			}
		}
	}
	return snap, nil
}

// ExpireToken burns a token and reports whether it existed.
func (c *Coordinator) ExpireToken(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, transfer.ErrInvalidToken
	}
	return c.Tokens.Expire(ctx, tokenID)
}

func (c *Coordinator) notifyMobile(ctx context.Context, sess *session.Session) {
	if c.Mobile == nil || sess.UserID == "" {
		return
	}

	handle, err := c.Registry.Lookup(ctx, registry.Mobile, sess.UserID)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			c.Logger.WarnContext(ctx, "mobile lookup failed",
				logger.Component("handoff"), logger.SessionID(sess.ID), logger.Error(err))
		}
		return
	}

	notice := TransferNotice{SessionID: sess.ID, KioskID: sess.KioskID, TransferredAt: sess.TransferredAt}
	if err := c.Mobile.Emit(handle, EventSessionTransferred, notice); err != nil {
		c.Logger.DebugContext(ctx, "mobile notification not delivered",
			logger.Component("handoff"), logger.ConnHandle(handle), logger.Error(err))
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, transfer.ErrNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, transfer.ErrStoreUnavailable), errors.Is(err, kv.ErrUnavailable):
		return metrics.ReasonTransient
	default:
		return metrics.ReasonInvalid
	}
}
