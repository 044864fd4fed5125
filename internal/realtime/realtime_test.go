package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/internal/realtime"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func serve(t *testing.T, ns *realtime.Namespace) string {
	t.Helper()
	h := ns.Serve()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h(w, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(frame{Event: event, Data: raw}))
}

func read(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

type echo struct {
	Text string `json:"text"`
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	ns := realtime.NewNamespace("mobile")
	ns.On("echo", realtime.NewHandler(func(_ context.Context, c *realtime.Conn, in echo) error {
		return c.Emit("echoed", echo{Text: strings.ToUpper(in.Text)})
	}))

	ws := dial(t, serve(t, ns))
	send(t, ws, "echo", echo{Text: "hi"})

	f := read(t, ws)
	assert.Equal(t, "echoed", f.Event)
	assert.JSONEq(t, `{"text":"HI"}`, string(f.Data))
}

func TestErrorEvents(t *testing.T) {
	t.Parallel()

	ns := realtime.NewNamespace("kiosk")
	ns.On("fail", func(context.Context, *realtime.Conn, json.RawMessage) error {
		return errors.New("boom")
	})
	ns.On("panic", func(context.Context, *realtime.Conn, json.RawMessage) error {
		panic("unexpected")
	})
	ns.On("typed", realtime.NewHandler(func(context.Context, *realtime.Conn, echo) error {
		return nil
	}))

	ws := dial(t, serve(t, ns))

	tests := []struct {
		name string
		send func()
		want string
	}{
		{"unknown event", func() { send(t, ws, "nope", nil) }, "unknown event"},
		{"invalid json", func() { require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{"))) }, "malformed message"},
		{"bad payload", func() { send(t, ws, "typed", 42) }, "malformed message"},
		{"handler error", func() { send(t, ws, "fail", nil) }, "internal error"},
		{"handler panic", func() { send(t, ws, "panic", nil) }, "internal error"},
	}
	for _, tt := range tests {
		tt.send()
		f := read(t, ws)
		assert.Equal(t, realtime.EventError, f.Event, tt.name)
		assert.JSONEq(t, `{"message":"`+tt.want+`"}`, string(f.Data), tt.name)
	}
}

func TestCustomErrorEncoder(t *testing.T) {
	t.Parallel()

	ns := realtime.NewNamespace("kiosk", realtime.WithErrorEncoder(func(err error) (string, any) {
		return "invalid-token", map[string]string{"message": err.Error()}
	}))
	ns.On("scan", func(context.Context, *realtime.Conn, json.RawMessage) error {
		return errors.New("invalid or expired token")
	})

	ws := dial(t, serve(t, ns))
	send(t, ws, "scan", nil)

	f := read(t, ws)
	assert.Equal(t, "invalid-token", f.Event)
	assert.JSONEq(t, `{"message":"invalid or expired token"}`, string(f.Data))
}

func TestOnEventSeesDispatchedEvents(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 4)
	ns := realtime.NewNamespace("kiosk", realtime.WithOnEvent(func(_ context.Context, c *realtime.Conn, event string) {
		seen <- c.Namespace() + "/" + event
	}))
	ns.On("scan", func(_ context.Context, c *realtime.Conn, _ json.RawMessage) error {
		return c.Emit("scanned", nil)
	})

	ws := dial(t, serve(t, ns))
	send(t, ws, "scan", nil)
	assert.Equal(t, "scanned", read(t, ws).Event)
	send(t, ws, "dance", nil)
	assert.Equal(t, realtime.EventError, read(t, ws).Event)

	assert.Equal(t, "kiosk/scan", <-seen)
	assert.Empty(t, seen)
}

func TestEmitByHandle(t *testing.T) {
	t.Parallel()

	handles := make(chan string, 1)
	ns := realtime.NewNamespace("mobile", realtime.WithOnConnect(func(_ context.Context, c *realtime.Conn) {
		handles <- c.ID()
	}))

	ws := dial(t, serve(t, ns))
	handle := <-handles

	require.NoError(t, ns.Emit(handle, "session-transferred", map[string]string{"sessionId": "s-1"}))
	f := read(t, ws)
	assert.Equal(t, "session-transferred", f.Event)

	assert.ErrorIs(t, ns.Emit("missing", "x", nil), realtime.ErrConnNotFound)
}

func TestConnectionLifecycle(t *testing.T) {
	t.Parallel()

	var live atomic.Int64
	disconnected := make(chan string, 1)
	ns := realtime.NewNamespace("kiosk",
		realtime.WithConnGauge(func(delta int) { live.Add(int64(delta)) }),
		realtime.WithOnDisconnect(func(_ context.Context, c *realtime.Conn) { disconnected <- c.ID() }),
	)
	ns.On("ping", func(_ context.Context, c *realtime.Conn, _ json.RawMessage) error {
		return c.Emit("pong", nil)
	})

	ws := dial(t, serve(t, ns))
	send(t, ws, "ping", nil)
	assert.Equal(t, "pong", read(t, ws).Event)
	assert.Equal(t, 1, ns.Len())
	assert.EqualValues(t, 1, live.Load())

	require.NoError(t, ws.Close())

	select {
	case id := <-disconnected:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback not called")
	}
	assert.Eventually(t, func() bool { return ns.Len() == 0 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 0, live.Load())
}

func TestShutdownClosesConnections(t *testing.T) {
	t.Parallel()

	ns := realtime.NewNamespace("mobile")
	ws := dial(t, serve(t, ns))
	require.Eventually(t, func() bool { return ns.Len() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ns.Shutdown(ctx))
	assert.Zero(t, ns.Len())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
