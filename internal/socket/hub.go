// Package socket pushes order status events to connected shoppers over WebSocket.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

const writeWait = 10 * time.Second

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	mu   sync.Mutex
}

func (c *client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub tracks open connections per user id. A user may hold several tabs.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	logger  *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[int64]map[*client]struct{}), logger: logger}
}

// Register adds conn for userID and returns the function that removes it.
func (h *Hub) Register(userID int64, conn Conn) func() {
	c := &client{conn: conn}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", zap.Int64("user_id", userID))

	return func() {
		h.mu.Lock()
		delete(h.clients[userID], c)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
		h.mu.Unlock()
		h.logger.Debug("websocket client unregistered", zap.Int64("user_id", userID))
	}
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send writes message to every connection of userID. An offline user is not an error.
func (h *Hub) Send(userID int64, message []byte) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, c := range targets {
		if err := c.write(message); err != nil {
			h.logger.Warn("websocket write failed", zap.Int64("user_id", userID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Publish pushes a status event to the order owner.
func (h *Hub) Publish(_ context.Context, ev models.StatusEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	return h.Send(ev.UserID, msg)
}
