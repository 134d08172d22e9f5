// Package ui bridges core events to the launcher's window shell. The
// shell connects over a local websocket; when nothing is connected events
// are dropped, never buffered or blocked on.
package ui

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
)

// Event is one named message pushed to the shell.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Bridge implements domain.HostUI over websocket connections.
type Bridge struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewBridge creates a UI bridge.
func NewBridge(logger *zap.Logger) *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			// The endpoint only binds loopback; the shell is local.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades a shell connection and keeps it registered until it
// closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("ui connection upgrade failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	b.conns[conn] = true
	b.mu.Unlock()

	b.logger.Info("ui shell connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain control frames until the shell disconnects.
	go func() {
		defer b.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Bridge) drop(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	conn.Close()
}

// Emit publishes a named event to every connected shell. Write failures
// drop the connection; the core never retries.
func (b *Bridge) Emit(event string, payload any) {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	msg := Event{Name: event, Payload: payload}
	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			b.logger.Debug("ui event write failed", zap.Error(err))
			b.drop(conn)
		}
	}
}

// Minimize asks the shell to minimize its window.
func (b *Bridge) Minimize() {
	b.Emit("window:minimize", nil)
}

// Restore asks the shell to restore its window.
func (b *Bridge) Restore() {
	b.Emit("window:restore", nil)
}

// Ensure Bridge implements domain.HostUI.
var _ domain.HostUI = (*Bridge)(nil)
