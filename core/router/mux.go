package router

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/dmitrymomot/handoff/core/handler"
)

// mux is the Router implementation. Inline routers created by With and Group
// share the parent's ServeMux and carry only their own extra middleware.
type mux[C handler.Context] struct {
	serveMux     *http.ServeMux
	middlewares  []handler.Middleware[C]
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request) C
	logger       *slog.Logger

	parent *mux[C]
	inline []handler.Middleware[C]

	mu     sync.RWMutex
	routes []Route
}

func newMux[C handler.Context](opts ...Option[C]) *mux[C] {
	m := &mux[C]{
		serveMux:     http.NewServeMux(),
		errorHandler: defaultErrorHandler[C],
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.newContext == nil {
		m.newContext = func(w http.ResponseWriter, r *http.Request) C {
			var zero C
			if _, ok := any(zero).(*Context); ok {
				return any(newContext(w, r)).(C)
			}
			panic(ErrNoContextFactory)
		}
	}

	return m
}

// ServeHTTP implements http.Handler.
func (m *mux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	root := m.root()

	h, pattern := root.serveMux.Handler(r)
	if pattern == "" {
		probe := &statusProbe{header: http.Header{}}
		h.ServeHTTP(probe, r)

		switch probe.status {
		case http.StatusNotFound:
			ww := newResponseWriter(w)
			root.errorHandler(root.newContext(ww, r), ErrNotFound)
			return
		case http.StatusMethodNotAllowed:
			ww := newResponseWriter(w)
			if allow := probe.header.Get("Allow"); allow != "" {
				ww.Header().Set("Allow", allow)
			}
			root.errorHandler(root.newContext(ww, r), ErrMethodNotAllowed)
			return
		}
	}

	root.serveMux.ServeHTTP(w, r)
}

// dispatch runs a matched route: context creation, middleware, rendering and
// error handling, with panic recovery around all of it.
func (m *mux[C]) dispatch(w http.ResponseWriter, r *http.Request, fn handler.HandlerFunc[C]) {
	ww := newResponseWriter(w)
	ctx := m.newContext(ww, r)

	defer func() {
		if p := recover(); p != nil {
			perr := &panicError{value: p, stack: debug.Stack()}
			if ww.Written() {
				m.logger.Error("panic after response written",
					slog.Any("value", perr.value),
					slog.String("stack", string(perr.stack)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
				)
				return
			}
			m.errorHandler(ctx, perr)
		}
	}()

	if len(m.middlewares) > 0 {
		fn = chain(m.middlewares, fn)
	}

	response := fn(ctx)
	if response == nil {
		m.errorHandler(ctx, ErrNilResponse)
		return
	}

	if err := response(ww, ctx.Request()); err != nil {
		m.errorHandler(ctx, err)
	}
}

func (m *mux[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodGet, pattern, h)
}

func (m *mux[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPost, pattern, h)
}

func (m *mux[C]) Put(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPut, pattern, h)
}

func (m *mux[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodDelete, pattern, h)
}

func (m *mux[C]) Patch(pattern string, h handler.HandlerFunc[C]) {
	m.handle(http.MethodPatch, pattern, h)
}

func (m *mux[C]) Handle(pattern string, h handler.HandlerFunc[C]) {
	m.handle("", pattern, h)
}

// Use appends router-wide middleware. On inline routers it appends to the
// inline chain instead.
func (m *mux[C]) Use(middlewares ...handler.Middleware[C]) {
	if m.parent != nil {
		m.inline = append(m.inline, middlewares...)
		return
	}
	m.middlewares = append(m.middlewares, middlewares...)
}

// With returns an inline router whose routes also run the given middleware.
func (m *mux[C]) With(middlewares ...handler.Middleware[C]) Router[C] {
	inline := make([]handler.Middleware[C], 0, len(m.inline)+len(middlewares))
	inline = append(inline, m.inline...)
	inline = append(inline, middlewares...)

	return &mux[C]{
		parent:       m,
		inline:       inline,
		serveMux:     m.serveMux,
		errorHandler: m.errorHandler,
		newContext:   m.newContext,
		logger:       m.logger,
	}
}

// Group registers routes on an inline router.
func (m *mux[C]) Group(fn func(r Router[C])) Router[C] {
	im := m.With()
	if fn != nil {
		fn(im)
	}
	return im
}

// Routes returns the registered routes in registration order.
func (m *mux[C]) Routes() []Route {
	root := m.root()
	root.mu.RLock()
	defer root.mu.RUnlock()

	out := make([]Route, len(root.routes))
	copy(out, root.routes)
	return out
}

func (m *mux[C]) root() *mux[C] {
	r := m
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (m *mux[C]) handle(method, pattern string, fn handler.HandlerFunc[C]) {
	if pattern == "" || pattern[0] != '/' {
		panic(fmt.Errorf("%w: '%s'", ErrInvalidPattern, pattern))
	}

	if len(m.inline) > 0 {
		fn = chain(m.inline, fn)
	}

	root := m.root()
	key := pattern
	if method != "" {
		key = method + " " + pattern
	}
	root.serveMux.Handle(key, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root.dispatch(w, r, fn)
	}))

	root.mu.Lock()
	if method == "" {
		method = "*"
	}
	root.routes = append(root.routes, Route{Method: method, Pattern: pattern})
	root.mu.Unlock()
}

// chain wraps fn so the first middleware runs outermost.
func chain[C handler.Context](middlewares []handler.Middleware[C], fn handler.HandlerFunc[C]) handler.HandlerFunc[C] {
	for i := len(middlewares) - 1; i >= 0; i-- {
		fn = middlewares[i](fn)
	}
	return fn
}
