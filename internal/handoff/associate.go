package handoff

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/recommend"
)

// AssociateInput asks for a store associate to bring a product.
type AssociateInput struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	KioskID   string `json:"kioskId"`
}

// AssociateRequest is an accepted associate request.
type AssociateRequest struct {
	ID          string          `json:"requestId"`
	SessionID   string          `json:"sessionId"`
	KioskID     string          `json:"kioskId,omitempty"`
	Product     catalog.Product `json:"product"`
	RequestedAt time.Time       `json:"requestedAt"`
}

// RequestAssociate validates that both the session and the product exist.
// The session is never modified.
func (c *Coordinator) RequestAssociate(ctx context.Context, in AssociateInput) (AssociateRequest, error) {
	if in.SessionID == "" || in.ProductID == "" {
		return AssociateRequest{}, ErrInvalidInput
	}

	if _, err := c.GetSession(ctx, in.SessionID); err != nil {
		return AssociateRequest{}, err
	}
	product, err := c.Product(ctx, in.ProductID)
	if err != nil {
		return AssociateRequest{}, err
	}

	req := AssociateRequest{
		ID:          uuid.NewString(),
		SessionID:   in.SessionID,
		KioskID:     in.KioskID,
		Product:     product,
		RequestedAt: c.Now().UTC(),
	}

	c.Logger.InfoContext(ctx, "associate requested",
		logger.Component("handoff"),
		logger.SessionID(in.SessionID),
		logger.ProductID(in.ProductID),
		logger.Identity(in.KioskID))
	return req, nil
}

// replyText builds the assistant message from the intent summary and the
// recommendations.
func replyText(summary string, rec recommend.Result) string {
	if len(rec.Products) == 0 {
		return summary
	}

	picks := make([]string, 0, len(rec.Products))
	for _, p := range rec.Products {
		picks = append(picks, fmt.Sprintf("%s ($%s)", p.Name, strconv.FormatFloat(p.Price, 'f', -1, 64)))
	}
	return summary + " You might like: " + strings.Join(picks, ", ") + "."
}
