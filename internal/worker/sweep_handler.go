package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/metrics"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// emptyRoomGrace 空房间的回收宽限期：REST 创建的房间在第一个
// 加入者到来之前没有参与者，清扫不能立即回收它们。
const emptyRoomGrace = 10 * time.Minute

// Kicker 由 Hub 实现：向连接发送错误消息并关闭它。
type Kicker interface {
	Kick(connID, reason string)
}

// RoomSweepHandler 处理周期性的房间清扫任务。
// 正常路径下空房间在最后一个参与者离开时即被移除，
// 清扫兜底两类残留：REST 创建后从未被加入的房间，和长时间闲置的房间。
type RoomSweepHandler struct {
	store    repository.RoomStore
	registry repository.ConnRegistry
	kicker   Kicker
	idleTTL  time.Duration
}

// NewRoomSweepHandler 创建 Handler 实例。
func NewRoomSweepHandler(store repository.RoomStore, registry repository.ConnRegistry, kicker Kicker, idleTTL time.Duration) *RoomSweepHandler {
	if store == nil {
		panic("RoomStore cannot be nil for RoomSweepHandler")
	}
	if registry == nil {
		panic("ConnRegistry cannot be nil for RoomSweepHandler")
	}
	if kicker == nil {
		panic("Kicker cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{
		store:    store,
		registry: registry,
		kicker:   kicker,
		idleTTL:  idleTTL,
	}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"component": "room_sweeper",
		"task_type": t.Type(),
	})

	codes, err := h.store.Codes(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list rooms for sweep")
		return err
	}
	if len(codes) == 0 {
		logCtx.Debug("No rooms to sweep")
		return nil
	}

	swept := 0
	for _, code := range codes {
		room, err := h.store.FindByCode(ctx, code)
		if err != nil {
			// 已被正常路径移除
			continue
		}
		roomLog := logCtx.WithField("room_code", code)

		switch {
		case room.IsEmpty() && room.IdleFor(emptyRoomGrace):
			if err := h.store.Remove(ctx, code); err != nil {
				roomLog.WithError(err).Error("Failed to remove empty room")
				continue
			}
			metrics.RoomsSwept.WithLabelValues("empty").Inc()
			roomLog.Info("Swept empty room")
			swept++

		case h.idleTTL > 0 && room.IdleFor(h.idleTTL):
			// 闲置超时：断开残留连接后回收房间
			for _, p := range room.Roster() {
				h.registry.Unbind(p.ConnID)
				h.kicker.Kick(p.ConnID, "room closed due to inactivity")
			}
			if err := h.store.Remove(ctx, code); err != nil {
				roomLog.WithError(err).Error("Failed to remove idle room")
				continue
			}
			metrics.RoomsSwept.WithLabelValues("idle").Inc()
			roomLog.Info("Swept idle room")
			swept++
		}
	}

	if swept > 0 {
		logCtx.Infof("Room sweep completed, reclaimed %d room(s)", swept)
	}
	return nil
}
