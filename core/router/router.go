// Package router provides a generic HTTP router with typed request contexts,
// a middleware chain, centralized error handling and panic recovery.
//
// Path matching is delegated to net/http.ServeMux patterns, so routes use the
// standard "/items/{id}" wildcard syntax and Context.Param reads
// Request.PathValue.
package router

import (
	"net/http"

	"github.com/dmitrymomot/handoff/core/handler"
)

// Router is the routing interface used by the service entrypoints.
type Router[C handler.Context] interface {
	http.Handler

	Get(pattern string, h handler.HandlerFunc[C])
	Post(pattern string, h handler.HandlerFunc[C])
	Put(pattern string, h handler.HandlerFunc[C])
	Delete(pattern string, h handler.HandlerFunc[C])
	Patch(pattern string, h handler.HandlerFunc[C])

	// Handle registers h for every method.
	Handle(pattern string, h handler.HandlerFunc[C])

	Use(middlewares ...handler.Middleware[C])
	With(middlewares ...handler.Middleware[C]) Router[C]
	Group(fn func(r Router[C])) Router[C]

	Routes() []Route
}

// Route describes a registered route.
type Route struct {
	Method  string
	Pattern string
}

// New creates a router. Custom context types require WithContextFactory.
func New[C handler.Context](opts ...Option[C]) Router[C] {
	return newMux(opts...)
}
