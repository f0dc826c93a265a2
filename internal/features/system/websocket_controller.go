package system

import (
	"github.com/gofiber/contrib/websocket"
)

type WebSocketController struct {
	Hub *Hub
}

func NewWebSocketController(hub *Hub) *WebSocketController {
	return &WebSocketController{Hub: hub}
}

// HandleWebSocket keeps the connection registered for broadcasts. Inbound
// frames are read only to detect the close.
func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	h.Hub.Register(c)
	defer h.Hub.Unregister(c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
