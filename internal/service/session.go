package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
	"github.com/catmaikl777/kitten-draw-backend/internal/dto"
	"github.com/catmaikl777/kitten-draw-backend/internal/repository"
)

// 房间码使用大写字母数字字母表，6 位，创建时做碰撞检查。
// 码空间足够大，生成失败在实践中不可达。
const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
	maxAttempts  = 10
)

// SessionManager 负责房间会话生命周期：创建、加入、离开，
// 以及容量和重复加入的约束检查。
// 每个房间的状态机: WaitingForSecond -> Full -> (有人离开) -> WaitingForSecond | 销毁。
type SessionManager struct {
	store    repository.RoomStore
	registry repository.ConnRegistry
}

// NewSessionManager 创建 SessionManager 实例。
func NewSessionManager(store repository.RoomStore, registry repository.ConnRegistry) *SessionManager {
	if store == nil {
		panic("RoomStore cannot be nil for SessionManager")
	}
	if registry == nil {
		panic("ConnRegistry cannot be nil for SessionManager")
	}
	return &SessionManager{store: store, registry: registry}
}

// AllocateRoom 生成唯一房间码并登记一个未入座的空房间。
// REST 创建流程使用：前端先通过 HTTP 拿到房间码，再经 WebSocket 加入，
// 第一个加入者占据槽位 1。从未被加入的房间由后台清扫任务回收。
func (s *SessionManager) AllocateRoom(ctx context.Context) (*domain.Room, error) {
	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate unique room code")
		return nil, err
	}
	room := domain.NewRoom(code)
	if err := s.store.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			// 生成时已做过存在性检查，理论上不应发生
			logrus.WithField("room_code", code).Error("Room code collision on create")
			return nil, ErrInternalServer
		}
		logrus.WithError(err).Error("Failed to register new room")
		return nil, ErrInternalServer
	}
	logrus.WithField("room_code", code).Info("Room allocated")
	return room, nil
}

// Create 为连接创建一个新房间并入座槽位 1，返回发给创建者的 room_joined 载荷。
// 已入座的连接重复创建会被拒绝，而不是占据第二个房间。
func (s *SessionManager) Create(ctx context.Context, connID, username string) (dto.RoomJoined, error) {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": connID, "username": username})

	if _, seated := s.registry.RoomOf(connID); seated {
		logCtx.Warn("Create rejected: connection already seated")
		return dto.RoomJoined{}, ErrAlreadyInRoom
	}

	room, err := s.AllocateRoom(ctx)
	if err != nil {
		return dto.RoomJoined{}, err
	}

	self, ok := room.Seat(connID, strings.TrimSpace(username))
	if !ok {
		// 新建房间不可能满
		logCtx.WithField("room_code", room.Code).Error("Freshly created room is full")
		return dto.RoomJoined{}, ErrInternalServer
	}
	s.registry.Bind(connID, room.Code)

	logCtx.WithFields(logrus.Fields{"room_code": room.Code, "player_id": self.ID}).Info("Room created, owner seated")
	return dto.NewRoomJoined(room.Code, self, room.Roster(), room.CanvasData()), nil
}

// Join 将连接加入指定房间码的房间。
// 返回发给加入者的 room_joined 载荷（携带当前 roster 和权威画布快照），
// 以及发给已在房间内参与者的通知（player_joined + 系统公告）。
func (s *SessionManager) Join(ctx context.Context, connID, code, username string) (dto.RoomJoined, []Delivery, error) {
	code = NormalizeCode(code)
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": connID, "room_code": code})

	if _, seated := s.registry.RoomOf(connID); seated {
		logCtx.Warn("Join rejected: connection already seated")
		return dto.RoomJoined{}, nil, ErrAlreadyInRoom
	}

	room, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Join rejected: room not found")
			return dto.RoomJoined{}, nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to look up room")
		return dto.RoomJoined{}, nil, ErrInternalServer
	}

	self, ok := room.Seat(connID, strings.TrimSpace(username))
	if !ok {
		logCtx.Warn("Join rejected: room full")
		return dto.RoomJoined{}, nil, ErrRoomFull
	}
	s.registry.Bind(connID, room.Code)
	logCtx.WithField("player_id", self.ID).Info("Player joined room")

	joined := dto.NewRoomJoined(room.Code, self, room.Roster(), room.CanvasData())

	peerConns := connIDs(room.Peers(connID))
	var deliveries []Delivery
	if len(peerConns) > 0 {
		deliveries = append(deliveries,
			deliverTo(peerConns, dto.NewPlayerJoined(self)),
			deliverTo(peerConns, dto.NewSystemChat(fmt.Sprintf("%s joined the room", self.Username))),
		)
	}
	return joined, deliveries, nil
}

// Leave 处理连接离开其当前房间：显式 leave_room 和传输层断开走同一条路径。
// 未入座的连接是 no-op。移除后房间变空则销毁房间，房间码立即可复用。
func (s *SessionManager) Leave(ctx context.Context, connID string) ([]Delivery, error) {
	code, seated := s.registry.RoomOf(connID)
	if !seated {
		return nil, nil
	}
	s.registry.Unbind(connID)
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": connID, "room_code": code})

	room, err := s.store.FindByCode(ctx, code)
	if err != nil {
		// 房间已被清扫，归属记录是残留
		logCtx.Warn("Leave: room already gone")
		return nil, nil
	}

	gone, removed := room.RemoveByConn(connID)
	if !removed {
		logCtx.Warn("Leave: participant not found in room roster")
		return nil, nil
	}
	logCtx.WithField("player_id", gone.ID).Info("Player left room")

	if room.IsEmpty() {
		if err := s.store.Remove(ctx, code); err != nil {
			logCtx.WithError(err).Error("Failed to remove empty room")
		} else {
			logCtx.Info("Room empty, removed from store")
		}
		return nil, nil
	}

	remaining := connIDs(room.Roster())
	return []Delivery{
		deliverTo(remaining, dto.NewPlayerLeft(gone.ID)),
		deliverTo(remaining, dto.NewSystemChat(fmt.Sprintf("%s left the room", gone.Username))),
	}, nil
}

// RoomInfo 返回房间是否存在及其当前人数，供 REST 探测接口使用。
func (s *SessionManager) RoomInfo(ctx context.Context, code string) (bool, int, error) {
	room, err := s.store.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return false, 0, nil
		}
		return false, 0, ErrInternalServer
	}
	return true, room.Occupancy(), nil
}

// NormalizeCode 归一化房间码输入：去空白并转为大写（输入不区分大小写）。
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateUniqueCode 生成未被占用的房间码。
// 码空间耗尽（连续碰撞达到上限）时返回 ErrCapacityExhausted。
func (s *SessionManager) generateUniqueCode(ctx context.Context) (string, error) {
	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		code := string(b)

		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check room code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", ErrCapacityExhausted
}

// connIDs 提取一组参与者的连接 ID。
func connIDs(participants []domain.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ConnID)
	}
	return ids
}
