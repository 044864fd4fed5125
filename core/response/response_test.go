package response_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/core/handler"
	"github.com/dmitrymomot/handoff/core/response"
	"github.com/dmitrymomot/handoff/core/router"
)

func TestJSONWithStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := response.JSONWithStatus(map[string]string{"ok": "yes"}, http.StatusCreated)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, response.JSONWithStatus(nil, 0)(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	custom := response.ErrNotFound.WithMessage("no such session").WithCode("session_not_found")
	assert.Equal(t, custom, response.AsHTTPError(custom))

	wrapped := errors.Join(errors.New("outer"), custom)
	assert.Equal(t, "session_not_found", response.AsHTTPError(wrapped).Code)

	plain := response.AsHTTPError(errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.NotContains(t, plain.Message, "db exploded")
}

func TestJSONErrorHandler(t *testing.T) {
	t.Parallel()

	r := router.New[*router.Context](router.WithErrorHandler(response.JSONErrorHandler[*router.Context]))
	r.Get("/bad", func(ctx *router.Context) handler.Response {
		return response.Error(response.ErrBadRequest.WithMessage("text is required"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body response.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body.Code)
	assert.Equal(t, "text is required", body.Message)
}

func TestWebSocketThroughRouter(t *testing.T) {
	t.Parallel()

	connected := make(chan struct{}, 1)
	r := router.New[*router.Context]()
	r.Get("/ws", func(ctx *router.Context) handler.Response {
		return response.WebSocket(func(ctx context.Context, conn *websocket.Conn) error {
			for {
				mt, data, err := conn.ReadMessage()
				if err != nil {
					return nil
				}
				if err := conn.WriteMessage(mt, []byte(strings.ToUpper(string(data)))); err != nil {
					return err
				}
			}
		},
			response.WithWSAllowAnyOrigin(),
			response.WithWSOnConnect(func(context.Context, *websocket.Conn) error {
				connected <- struct{}{}
				return nil
			}),
		)
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	<-connected
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(data))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	require.NoError(t, response.Handler(h)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/metrics", rec.Header().Get("X-Path"))
}
