package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/dto"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// ChatRelay 将聊天消息透传给房间内的其他参与者。服务端不保留历史。
type ChatRelay struct {
	store    repository.RoomStore
	registry repository.ConnRegistry
}

// NewChatRelay 创建 ChatRelay 实例。
func NewChatRelay(store repository.RoomStore, registry repository.ConnRegistry) *ChatRelay {
	if store == nil {
		panic("RoomStore cannot be nil for ChatRelay")
	}
	if registry == nil {
		panic("ConnRegistry cannot be nil for ChatRelay")
	}
	return &ChatRelay{store: store, registry: registry}
}

// SubmitChat 广播一条聊天消息。发送者身份取自房间 roster，
// 不信任客户端自报的 playerId/username。空白消息直接丢弃，不算错误。
func (r *ChatRelay) SubmitChat(ctx context.Context, connID, text string) ([]Delivery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	code, seated := r.registry.RoomOf(connID)
	if !seated {
		return nil, ErrNotInRoom
	}
	room, err := r.store.FindByCode(ctx, code)
	if err != nil {
		r.registry.Unbind(connID)
		return nil, ErrNotInRoom
	}
	sender, ok := room.ParticipantByConn(connID)
	if !ok {
		return nil, ErrNotInRoom
	}

	room.Touch()
	logrus.WithFields(logrus.Fields{
		"room_code": room.Code,
		"player_id": sender.ID,
		"length":    len(text),
	}).Debug("Relaying chat message")

	peers := connIDs(room.Peers(connID))
	if len(peers) == 0 {
		return nil, nil
	}
	msg := domain.ChatMessage{SenderID: sender.ID, Username: sender.Username, Text: text}
	return []Delivery{deliverTo(peers, dto.NewChatBroadcast(msg))}, nil
}
