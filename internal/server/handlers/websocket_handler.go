package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/server/middleware"
	"github.com/mamadbah2/vaccine-orders/internal/socket"
)

// pongWait is how long a connection may stay silent before it is dropped.
const pongWait = 60 * time.Second

// WebSocketHandler upgrades authenticated clients onto the order status hub.
type WebSocketHandler struct {
	hub      *socket.Hub
	auth     middleware.Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler constructs the handler. Origins are checked against allowed when set.
func NewWebSocketHandler(hub *socket.Hub, auth middleware.Authenticator, allowed []string, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowed),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs authenticates ?token= and keeps the connection registered until it closes.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	key := c.Query("token")
	if key == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	unregister := h.hub.Register(user.ID, conn)
	defer func() {
		unregister()
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.Int64("user_id", user.ID), zap.Error(err))
			}
			return
		}
	}
}
