package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated and served to terminal clients, not
	// browsers with ambient credentials; origin checking adds nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket authenticates the peer via the token query parameter,
// upgrades the transport and hands the connection to the realtime hub.
func (h *httpHandler) handleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if _, err := h.tokens.ValidateToken(token); err != nil {
		h.logger.Warn("websocket token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.HandleConnection(conn)
}

func (h *httpHandler) handleWebSocketStats(c *gin.Context) {
	registry := h.hub.Registry()
	c.JSON(http.StatusOK, gin.H{
		"active_connections": registry.Len(),
		"clients":            registry.Snapshot(),
	})
}
