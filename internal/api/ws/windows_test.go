package ws

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/notify"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/timer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

func newWindowTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loop := notify.NewLoopback()
	store := timer.NewStore(filepath.Join(t.TempDir(), "timers.json"))
	svc := timer.NewService(store, loop, logging.NewNop())
	t.Cleanup(svc.Close)

	hub := NewWindowHub(svc, loop, nil, logging.NewNop())
	t.Cleanup(hub.Close)

	r := gin.New()
	r.GET("/ws/windows", hub.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWindow(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/windows"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readWindowState reads until a message satisfies pred; windows may see
// intermediate snapshots before the one under test.
func readWindowState(t *testing.T, conn *websocket.Conn, pred func(types.WindowMessage) bool) types.WindowMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg types.WindowMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if pred(msg) {
			return msg
		}
	}
	t.Fatal("No matching state message in time")
	return types.WindowMessage{}
}

// One window adds and starts a timer; the other converges on the same
// state purely over the shared channel.
func TestWindowsConvergeAcrossClients(t *testing.T) {
	srv := newWindowTestServer(t)

	a := dialWindow(t, srv)
	b := dialWindow(t, srv)

	// Both begin with the current (empty) snapshot.
	initial := readWindowState(t, a, func(m types.WindowMessage) bool { return m.Type == types.WindowState })
	require.Empty(t, initial.Items)
	readWindowState(t, b, func(m types.WindowMessage) bool { return m.Type == types.WindowState })

	name := "initiative"
	require.NoError(t, a.WriteJSON(types.WindowMessage{
		Type: types.TimeManagerAdd, Mode: types.ModeStopwatch, Name: &name,
	}))

	added := readWindowState(t, b, func(m types.WindowMessage) bool {
		return m.Type == types.WindowState && len(m.Items) == 1
	})
	require.Equal(t, "initiative", added.Items[0].Name)
	assert.False(t, added.Items[0].Running)

	require.NoError(t, a.WriteJSON(types.WindowMessage{
		Type: types.TimeManagerStart, ID: added.Items[0].ID,
	}))

	running := readWindowState(t, b, func(m types.WindowMessage) bool {
		return m.Type == types.WindowState && len(m.Items) == 1 && m.Items[0].Running
	})
	assert.Equal(t, added.Items[0].ID, running.Items[0].ID)
}

func TestWindowGetStateAnswersSenderOnly(t *testing.T) {
	srv := newWindowTestServer(t)

	a := dialWindow(t, srv)
	b := dialWindow(t, srv)
	readWindowState(t, a, func(m types.WindowMessage) bool { return m.Type == types.WindowState })
	readWindowState(t, b, func(m types.WindowMessage) bool { return m.Type == types.WindowState })

	require.NoError(t, a.WriteJSON(types.WindowMessage{Type: types.TimeManagerGetState}))

	reply := readWindowState(t, a, func(m types.WindowMessage) bool { return m.Type == types.WindowState })
	assert.Empty(t, reply.Items)

	// The other window hears nothing: get-state is not a broadcast.
	require.NoError(t, b.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var msg types.WindowMessage
	assert.Error(t, b.ReadJSON(&msg))
}
