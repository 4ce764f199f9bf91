package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/shared/types"
)

var testMetrics = monitoring.NewMetrics()

type wsFixture struct {
	hub *Hub
	url string
}

func newFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(logging.NewNop(), testMetrics)
	router := gin.New()
	router.GET("/stream", hub.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return &wsFixture{
		hub: hub,
		url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream",
	}
}

// dial connects and consumes the greeting, which doubles as the
// registration sync point.
func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	greeting := readEvent(t, conn)
	require.Equal(t, "system", greeting.Type)
	require.Contains(t, greeting.Message, "event stream")
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) types.StreamEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev types.StreamEvent
	require.NoError(t, sonic.Unmarshal(data, &ev))
	return ev
}

func TestPublishFanOut(t *testing.T) {
	f := newFixture(t)
	first := f.dial(t)
	second := f.dial(t)

	f.hub.Publish(types.StreamEvent{
		Type:      "automation_paused",
		SessionID: "sess_01HUB",
		AppID:     "app_editor",
		State:     types.StatePaused,
		Reason:    "focus_lost",
		Message:   "playback paused (focus_lost)",
		Timestamp: time.Now().UnixMilli(),
	})

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, "automation_paused", ev.Type)
		assert.Equal(t, "sess_01HUB", ev.SessionID)
		assert.Equal(t, "app_editor", ev.AppID)
		assert.Equal(t, types.StatePaused, ev.State)
		assert.NotZero(t, ev.Timestamp)
	}
}

func TestPingPong(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	ev := readEvent(t, conn)
	assert.Equal(t, "pong", ev.Type)
	assert.NotZero(t, ev.Timestamp)
}

func TestInboundErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "unknown message type", ev.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "malformed message", ev.Message)
}

func TestClientLifecycle(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	assert.Equal(t, 1, f.hub.ClientCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.hub.ClientCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsStream(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	f.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, f.hub.ClientCount())

	// New connections are dropped right after the handshake.
	late, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, f.hub.ClientCount())
}
