package handoff

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/handoff/core/binder"
	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/core/response"
	"github.com/dmitrymomot/handoff/core/router"
)

// RegisterRoutes mounts the request/response API under /api. Every handler
// error is converted with PublicError.
func RegisterRoutes[C handler.Context](r router.Router[C], c *Coordinator) {
	bind := binder.JSON()

	r.Post("/api/messages", func(ctx C) handler.Response {
		var req messageRequest
		if err := bind(ctx.Request(), &req); err != nil {
			return c.fail(ctx, err)
		}
		reply, err := c.HandleMessage(ctx, req.input(""))
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(reply)
	})

	r.Get("/api/sessions/{id}", func(ctx C) handler.Response {
		sess, err := c.GetSession(ctx, ctx.Param("id"))
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(sess)
	})

	r.Delete("/api/sessions/{id}", func(ctx C) handler.Response {
		if err := c.DeleteSession(ctx, ctx.Param("id")); err != nil {
			return c.fail(ctx, err)
		}
		return response.NoContent()
	})

	r.Post("/api/sessions/{id}/transfer", func(ctx C) handler.Response {
		ticket, err := c.RequestTransfer(ctx, ctx.Param("id"))
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSONWithStatus(ticket, http.StatusCreated)
	})

	r.Post("/api/tokens/validate", func(ctx C) handler.Response {
		var in ScanInput
		if err := bind(ctx.Request(), &in); err != nil {
			return c.fail(ctx, err)
		}
		snap, err := c.ValidateToken(ctx, in)
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(snap)
	})

	r.Delete("/api/tokens/{id}", func(ctx C) handler.Response {
		existed, err := c.ExpireToken(ctx, ctx.Param("id"))
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(map[string]bool{"expired": existed})
	})

	r.Post("/api/associates", func(ctx C) handler.Response {
		var in AssociateInput
		if err := bind(ctx.Request(), &in); err != nil {
			return c.fail(ctx, err)
		}
		req, err := c.RequestAssociate(ctx, in)
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSONWithStatus(req, http.StatusCreated)
	})

	r.Get("/api/products", func(ctx C) handler.Response {
		products, err := c.Products(ctx)
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(products)
	})

	r.Get("/api/products/{id}", func(ctx C) handler.Response {
		p, err := c.Product(ctx, ctx.Param("id"))
		if err != nil {
			return c.fail(ctx, err)
		}
		return response.JSON(p)
	})
}

func (c *Coordinator) fail(ctx context.Context, err error) handler.Response {
	pub := PublicError(err)
	if pub.Status >= http.StatusInternalServerError {
		c.Logger.ErrorContext(ctx, "request failed", logger.Component("handoff"), logger.Error(err))
	}
	return response.Error(pub)
}
