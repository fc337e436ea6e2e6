package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/dto"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// DrawRelay 负责绘画操作的中继：用发送方的完整画布快照替换房间的权威快照，
// 再把操作原样转发给对端。快照复制（而非矢量重放）是刻意保留的设计：
// 后加入者回放和 undo 的正确性都依赖整快照语义，并发提交按
// last-write-wins 收敛，中继本身不需要任何合并逻辑。
type DrawRelay struct {
	store    repository.RoomStore
	registry repository.ConnRegistry
}

// NewDrawRelay 创建 DrawRelay 实例。
func NewDrawRelay(store repository.RoomStore, registry repository.ConnRegistry) *DrawRelay {
	if store == nil {
		panic("RoomStore cannot be nil for DrawRelay")
	}
	if registry == nil {
		panic("ConnRegistry cannot be nil for DrawRelay")
	}
	return &DrawRelay{store: store, registry: registry}
}

// SubmitDraw 处理一次绘画提交（普通笔划、图形或 undo）。
// undo 只是 CanvasData 为撤销后画布的一次普通提交：中继没有撤销栈的概念，
// 撤销历史是各参与者本地的，跨端只通过快照替换收敛（谁最后动作谁生效）。
func (r *DrawRelay) SubmitDraw(ctx context.Context, connID string, op domain.DrawOp) ([]Delivery, error) {
	room, sender, err := r.resolve(ctx, connID)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": room.Code,
		"player_id": sender.ID,
		"tool":      op.Tool,
		"is_undo":   op.IsUndo,
	})

	if err := op.Validate(); err != nil {
		logCtx.WithError(err).Warn("Rejected malformed draw op")
		return nil, ErrInvalidPayload
	}

	room.SetCanvasData(op.CanvasData)
	logCtx.WithField("snapshot_size", len(op.CanvasData)).Debug("Canvas snapshot replaced")

	peers := connIDs(room.Peers(connID))
	if len(peers) == 0 {
		return nil, nil
	}
	return []Delivery{deliverTo(peers, dto.NewDrawBroadcast(sender.ID, op))}, nil
}

// SubmitClear 将房间画布重置为空白并通知对端本地重置。
// 接收方无需载荷，收到即清空。
func (r *DrawRelay) SubmitClear(ctx context.Context, connID string) ([]Delivery, error) {
	room, sender, err := r.resolve(ctx, connID)
	if err != nil {
		return nil, err
	}
	room.SetCanvasData("")
	logrus.WithFields(logrus.Fields{"room_code": room.Code, "player_id": sender.ID}).Debug("Canvas cleared")

	peers := connIDs(room.Peers(connID))
	if len(peers) == 0 {
		return nil, nil
	}
	return []Delivery{deliverTo(peers, dto.NewClearBroadcast(sender.ID))}, nil
}

// resolve 定位发送方所在的房间及其参与者记录。
// 未入座（或归属的房间已被清扫）返回 ErrNotInRoom。
func (r *DrawRelay) resolve(ctx context.Context, connID string) (*domain.Room, domain.Participant, error) {
	code, seated := r.registry.RoomOf(connID)
	if !seated {
		return nil, domain.Participant{}, ErrNotInRoom
	}
	room, err := r.store.FindByCode(ctx, code)
	if err != nil {
		logrus.WithFields(logrus.Fields{"conn_id": connID, "room_code": code}).Warn("Relay: bound room no longer exists")
		r.registry.Unbind(connID)
		return nil, domain.Participant{}, ErrNotInRoom
	}
	sender, ok := room.ParticipantByConn(connID)
	if !ok {
		return nil, domain.Participant{}, ErrNotInRoom
	}
	return room, sender, nil
}
