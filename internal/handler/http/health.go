package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/catmaikl777/kitten-draw-backend/internal/hub"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// HealthHandler 提供存活探测。前端启动时轮询此接口确认后端可用。
type HealthHandler struct {
	store repository.RoomStore
	hub   *hub.Hub
}

// NewHealthHandler 创建 HealthHandler 实例。
func NewHealthHandler(store repository.RoomStore, h *hub.Hub) *HealthHandler {
	if store == nil {
		panic("RoomStore cannot be nil for HealthHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for HealthHandler")
	}
	return &HealthHandler{store: store, hub: h}
}

// Health 返回服务状态及当前房间/连接计数。
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	rooms, err := h.store.Count(c.Request.Context())
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "health check failed")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       rooms,
		"connections": h.hub.ClientCount(),
	})
}
