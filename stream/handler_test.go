package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, limit int) (*httptest.Server, *Handler) {
	t.Helper()
	return newPacedTestServer(t, limit, noWaitPacer)
}

func newPacedTestServer(t *testing.T, limit int, pacer PacerFactory) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(NewManager(limit, nil, nil), fiveFrameRegistry(t), HandlerOptions{
		PingInterval: time.Second,
		WriteTimeout: time.Second,
		NewPacer:     pacer,
	}, nil, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHandler_ConnectAndPing(t *testing.T) {
	srv, h := newTestServer(t, 0)
	conn := dial(t, srv)

	hello := readMsg(t, conn)
	assert.Equal(t, TypeConnected, hello["type"])
	assert.NotEmpty(t, hello["client_id"])
	assert.Equal(t, 1, h.Stats().ActiveConnections)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, TypePong, readMsg(t, conn)["type"])
}

func TestHandler_StreamSession(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeStartSessionStream, "session_id": "sid_0001", "fps": 500}))

	started := readMsg(t, conn)
	require.Equal(t, TypeStreamStarted, started["type"])
	assert.Equal(t, float64(MaxFPS), started["fps"])
	for i := 0; i < 5; i++ {
		f := readMsg(t, conn)
		require.Equal(t, TypeFrame, f["type"])
		assert.Equal(t, float64(i), f["frame_number"])
	}
	assert.Equal(t, TypeStreamCompleted, readMsg(t, conn)["type"])
}

func TestHandler_Errors(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	conn := dial(t, srv)
	readMsg(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	m := readMsg(t, conn)
	assert.Equal(t, TypeError, m["type"])
	assert.Equal(t, "Invalid JSON message", m["message"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "rewind"}))
	m = readMsg(t, conn)
	assert.Equal(t, TypeError, m["type"])
	assert.Equal(t, "Unknown message type: rewind", m["message"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeStartSessionStream, "session_id": "nope"}))
	m = readMsg(t, conn)
	assert.Equal(t, TypeError, m["type"])
	assert.Equal(t, "Session 'nope' not found on server.", m["message"])
}

func TestHandler_RefusesOverLimit(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	first := dial(t, srv)
	readMsg(t, first)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	srv, h := newTestServer(t, 0)
	conn := dial(t, srv)
	readMsg(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return h.Stats().ActiveConnections == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(NewManager(0, nil, nil), fiveFrameRegistry(t), HandlerOptions{
		AllowedOrigins: []string{"http://viewer.local"},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws/simulation", nil)
	req.Header.Set("Origin", "http://viewer.local")
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, h.checkOrigin(req))
	req.Header.Del("Origin")
	assert.True(t, h.checkOrigin(req))
}

func TestHandler_SecondStartWhileStreaming(t *testing.T) {
	srv, h := newPacedTestServer(t, 4, func(int) Pacer { return NewSleepPacer(20) })
	conn := dial(t, srv)
	require.Equal(t, TypeConnected, readMsg(t, conn)["type"])

	start := map[string]any{"type": TypeStartSessionStream, "session_id": "sid_0001"}
	require.NoError(t, conn.WriteJSON(start))
	require.NoError(t, conn.WriteJSON(start))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))

	var msgs []map[string]any
	for {
		m := readMsg(t, conn)
		msgs = append(msgs, m)
		if m["type"] == TypeStreamCompleted {
			break
		}
	}

	var errs, frameNumbers []any
	pongAt, started := -1, 0
	for i, m := range msgs {
		switch m["type"] {
		case TypeStreamStarted:
			started++
		case TypeError:
			errs = append(errs, m["message"])
		case TypePong:
			pongAt = i
		case TypeFrame:
			frameNumbers = append(frameNumbers, m["frame_number"])
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, []any{"stream already in progress"}, errs)
	assert.GreaterOrEqual(t, pongAt, 0)
	assert.Less(t, pongAt, len(msgs)-1)
	assert.Equal(t, []any{0.0, 1.0, 2.0, 3.0, 4.0}, frameNumbers)

	assert.Eventually(t, func() bool { return h.Stats().ActiveStreams == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(start))
	require.Equal(t, TypeStreamStarted, readMsg(t, conn)["type"])
	for i := 0; i < 5; i++ {
		f := readMsg(t, conn)
		require.Equal(t, TypeFrame, f["type"])
		assert.Equal(t, float64(i), f["frame_number"])
	}
	assert.Equal(t, TypeStreamCompleted, readMsg(t, conn)["type"])
}
