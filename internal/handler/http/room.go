package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/metrics"
	"github.com/catmaikl777/kitten-draw-backend/internal/service"
)

// RoomHandler 封装了与房间相关的 REST 处理逻辑。
// 前端在升级 WebSocket 之前通过这两个接口创建房间和探测房间占用。
type RoomHandler struct {
	session *service.SessionManager
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(session *service.SessionManager) *RoomHandler {
	if session == nil {
		panic("SessionManager cannot be nil for RoomHandler")
	}
	return &RoomHandler{session: session}
}

// CreateRoomRequest 定义创建房间请求体。
// username 仅作日志用途：创建者要等 join_room 时才真正入座。
type CreateRoomRequest struct {
	Username string `json:"username"`
}

// CreateRoomResponse 定义创建房间成功的响应。
type CreateRoomResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

// CreateRoom 处理创建新房间的请求。
// POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	// 请求体可选；绑定失败按匿名创建处理
	_ = c.ShouldBindJSON(&req)

	room, err := h.session.AllocateRoom(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateRoom: failed to allocate room")
		HandleServiceError(c, err)
		return
	}
	metrics.RoomsCreated.Inc()

	logrus.WithFields(logrus.Fields{
		"room_code": room.Code,
		"username":  req.Username,
	}).Info("Handler.CreateRoom: room allocated")
	SuccessResponse(c, http.StatusOK, CreateRoomResponse{Success: true, RoomID: room.Code})
}

// RoomInfoResponse 定义房间探测的响应。
type RoomInfoResponse struct {
	Exists  bool `json:"exists"`
	Players int  `json:"players"`
}

// GetRoom 处理房间探测请求：房间是否存在及当前人数。
// GET /api/rooms/:roomId （房间码不区分大小写）
func (h *RoomHandler) GetRoom(c *gin.Context) {
	code := c.Param("roomId")

	exists, players, err := h.session.RoomInfo(c.Request.Context(), code)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("Handler.GetRoom: failed to query room")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomInfoResponse{Exists: exists, Players: players})
}
