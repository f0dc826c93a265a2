package system

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans finished sync runs out to connected operator sessions. A slow or
// dead connection is dropped rather than allowed to block the others.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		log:   log.Named("ws"),
	}
}

func (h *Hub) Register(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("Broadcast marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, c)
			_ = c.Close()
		}
	}
}
