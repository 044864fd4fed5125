package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/core/response"
	"github.com/dmitrymomot/handoff/core/router"
	"github.com/dmitrymomot/handoff/middleware"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context](router.WithMiddleware(
		middleware.RequestIDWithConfig[*router.Context](middleware.RequestIDConfig{UseExisting: true}),
	))
	r.Get("/id", func(ctx *router.Context) handler.Response {
		id, ok := middleware.GetRequestID(ctx)
		require.True(t, ok)
		return response.String(id)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := rec.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-1", rec.Header().Get("X-Request-ID"))
}

func TestLoggingRecordsStatusAndRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	)

	r := router.New[*router.Context](
		router.WithErrorHandler(response.JSONErrorHandler[*router.Context]),
		router.WithMiddleware(
			middleware.RequestIDWithConfig[*router.Context](middleware.RequestIDConfig{
				Generator: func() string { return "req-7" },
			}),
			middleware.LoggingWithLogger[*router.Context](log),
		),
	)
	r.Get("/missing", func(ctx *router.Context) handler.Response {
		return response.Error(response.ErrNotFound)
	})
	r.Get("/ok", func(ctx *router.Context) handler.Response {
		return response.String("fine")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status_code=404")
	assert.Contains(t, out, "status_code=200")
	assert.Contains(t, out, "request_id=req-7")
	assert.Contains(t, out, "path=/ok")
}
