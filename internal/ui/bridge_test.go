package ui

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialBridge(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForConns waits until the bridge has registered n shells. Dial
// returns on the client side before the server finishes registration.
func waitForConns(t *testing.T, bridge *Bridge, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.conns) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestEmitReachesConnectedShell(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	server := httptest.NewServer(bridge)
	defer server.Close()

	conn := dialBridge(t, server.URL)
	waitForConns(t, bridge, 1)

	bridge.Emit("session:launched", map[string]any{"exe": "GenshinImpact.exe"})

	event := readEvent(t, conn)
	assert.Equal(t, "session:launched", event.Name)
	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "GenshinImpact.exe", payload["exe"])
}

func TestEmitReachesAllShells(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	server := httptest.NewServer(bridge)
	defer server.Close()

	first := dialBridge(t, server.URL)
	second := dialBridge(t, server.URL)
	waitForConns(t, bridge, 2)

	bridge.Minimize()

	assert.Equal(t, "window:minimize", readEvent(t, first).Name)
	assert.Equal(t, "window:minimize", readEvent(t, second).Name)
}

func TestEmitWithoutShellIsDropped(t *testing.T) {
	bridge := NewBridge(zap.NewNop())

	// Must not block or panic with nothing connected.
	bridge.Emit("session:restored", "restored 1 file(s)")
	bridge.Restore()
}

func TestDisconnectedShellIsForgotten(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	server := httptest.NewServer(bridge)
	defer server.Close()

	conn := dialBridge(t, server.URL)
	waitForConns(t, bridge, 1)
	conn.Close()

	// The reader goroutine needs a moment to observe the close.
	waitForConns(t, bridge, 0)

	bridge.Emit("session:restored", nil)
}

func TestWindowEvents(t *testing.T) {
	bridge := NewBridge(zap.NewNop())
	server := httptest.NewServer(bridge)
	defer server.Close()

	conn := dialBridge(t, server.URL)
	waitForConns(t, bridge, 1)

	bridge.Minimize()
	bridge.Restore()

	assert.Equal(t, "window:minimize", readEvent(t, conn).Name)
	assert.Equal(t, "window:restore", readEvent(t, conn).Name)
}
