package websockets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Hub delivers notifications to WebSocket connections held by this process.
// It backs the local development server, where there is no API Gateway.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[string]*hubConn
}

type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Make sure we conform to the interface
var _ notify.Notifier = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[string]*hubConn)}
}

// Register attaches a connection to a user.
func (h *Hub) Register(userID, connectionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[string]*hubConn)
	}
	h.conns[userID][connectionID] = &hubConn{conn: conn}
}

// Unregister detaches a connection.
func (h *Hub) Unregister(userID, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], connectionID)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// Connections returns how many connections a user has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

// Notify writes the notification to every local connection of its user.
func (h *Hub) Notify(_ context.Context, n notify.Notification) error {
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns[n.UserID]))
	for _, c := range h.conns[n.UserID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	msg := NewMessage(n)
	var failed int
	for _, c := range targets {
		c.mu.Lock()
		err := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err == nil {
			err = c.conn.WriteJSON(msg)
		}
		c.mu.Unlock()
		if err != nil {
			failed++
			slog.Error("failed to write to local connection", "user_id", n.UserID, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to deliver to %d of %d connections", failed, len(targets))
	}
	return nil
}
