package dto

import (
	"encoding/json"
	"fmt"

	"github.com/catmaikl777/kitten-draw-backend/internal/domain"
)

// 客户端入站消息类型
const (
	KindCreateRoom  = "create_room"
	KindJoinRoom    = "join_room"
	KindLeaveRoom   = "leave_room"
	KindDraw        = "draw"
	KindClear       = "clear"
	KindChatMessage = "chat_message"
)

// 服务端出站消息类型
const (
	KindRoomJoined   = "room_joined"
	KindPlayerJoined = "player_joined"
	KindPlayerLeft   = "player_left"
	KindError        = "error"
)

// ClientMessage 表示客户端通过 WebSocket 发送的消息信封。
// 所有入站消息类型共用一个扁平结构，字段按 Type 取用；
// 字段名沿用前端 (kitten-draw-front) 的载荷命名。
type ClientMessage struct {
	Type       string      `json:"type"`
	RoomID     string      `json:"roomId,omitempty"`
	Username   string      `json:"username,omitempty"`
	Tool       string      `json:"tool,omitempty"`
	Points     [][]float64 `json:"points,omitempty"`
	Color      string      `json:"color,omitempty"`
	BrushSize  int         `json:"brushSize,omitempty"`
	CanvasData string      `json:"canvasData,omitempty"`
	IsUndo     bool        `json:"isUndo,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// DecodeClientMessage 解析一帧入站消息。
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("dto: failed to decode client message: %w", err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("dto: client message missing type")
	}
	return msg, nil
}

// DrawOp 将 draw 消息转换为领域操作。
func (m ClientMessage) DrawOp() domain.DrawOp {
	op := domain.DrawOp{
		Tool:       m.Tool,
		Points:     m.Points,
		Color:      m.Color,
		BrushSize:  m.BrushSize,
		CanvasData: m.CanvasData,
		IsUndo:     m.IsUndo,
	}
	if op.Tool == domain.ToolEraser {
		// 橡皮擦统一使用背景色，忽略客户端选中的颜色
		op.Color = domain.EraserColor
	}
	return op
}

// PlayerInfo 是 roster 中单个参与者的出站形态。
type PlayerInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// RoomJoined 只发给加入者本人：房间码、分配到的槽位号、
// 当前 roster 以及权威画布快照（后加入者先渲染它，再接收后续实时操作）。
type RoomJoined struct {
	Type       string       `json:"type"`
	RoomID     string       `json:"roomId"`
	PlayerID   int          `json:"playerId"`
	Players    []PlayerInfo `json:"players"`
	CanvasData string       `json:"canvasData"`
}

// NewRoomJoined 从房间状态组装 room_joined 载荷。
func NewRoomJoined(code string, self domain.Participant, roster []domain.Participant, canvasData string) RoomJoined {
	players := make([]PlayerInfo, 0, len(roster))
	for _, p := range roster {
		players = append(players, PlayerInfo{ID: p.ID, Username: p.Username})
	}
	return RoomJoined{
		Type:       KindRoomJoined,
		RoomID:     code,
		PlayerID:   self.ID,
		Players:    players,
		CanvasData: canvasData,
	}
}

// PlayerJoined 通知已在房间内的参与者有新人加入。
type PlayerJoined struct {
	Type   string     `json:"type"`
	Player PlayerInfo `json:"player"`
}

// NewPlayerJoined 组装 player_joined 载荷。
func NewPlayerJoined(p domain.Participant) PlayerJoined {
	return PlayerJoined{
		Type:   KindPlayerJoined,
		Player: PlayerInfo{ID: p.ID, Username: p.Username},
	}
}

// PlayerLeft 通知剩余参与者某个槽位被让出。
type PlayerLeft struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
}

// NewPlayerLeft 组装 player_left 载荷。
func NewPlayerLeft(playerID int) PlayerLeft {
	return PlayerLeft{Type: KindPlayerLeft, PlayerID: playerID}
}

// DrawBroadcast 镜像发送方的 draw 载荷转发给对端，
// 附带完整快照用于冗余重同步。
type DrawBroadcast struct {
	Type       string      `json:"type"`
	PlayerID   int         `json:"playerId"`
	Tool       string      `json:"tool,omitempty"`
	Points     [][]float64 `json:"points,omitempty"`
	Color      string      `json:"color,omitempty"`
	BrushSize  int         `json:"brushSize,omitempty"`
	CanvasData string      `json:"canvasData"`
	IsUndo     bool        `json:"isUndo,omitempty"`
}

// NewDrawBroadcast 组装 draw 广播载荷。
func NewDrawBroadcast(senderID int, op domain.DrawOp) DrawBroadcast {
	return DrawBroadcast{
		Type:       KindDraw,
		PlayerID:   senderID,
		Tool:       op.Tool,
		Points:     op.Points,
		Color:      op.Color,
		BrushSize:  op.BrushSize,
		CanvasData: op.CanvasData,
		IsUndo:     op.IsUndo,
	}
}

// ClearBroadcast 通知对端重置本地画布。无需载荷。
type ClearBroadcast struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
}

// NewClearBroadcast 组装 clear 广播载荷。
func NewClearBroadcast(senderID int) ClearBroadcast {
	return ClearBroadcast{Type: KindClear, PlayerID: senderID}
}

// ChatBroadcast 玩家聊天消息的出站形态。
type ChatBroadcast struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// NewChatBroadcast 组装 chat_message 广播载荷。
func NewChatBroadcast(msg domain.ChatMessage) ChatBroadcast {
	return ChatBroadcast{
		Type:     KindChatMessage,
		PlayerID: msg.SenderID,
		Username: msg.Username,
		Message:  msg.Text,
	}
}

// SystemChat 房间生命周期公告。playerId 使用字符串 "system"，
// 前端据此切换系统消息样式。
type SystemChat struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// NewSystemChat 组装系统公告载荷。
func NewSystemChat(text string) SystemChat {
	return SystemChat{
		Type:     KindChatMessage,
		PlayerID: domain.SystemSender,
		Username: domain.SystemUsername,
		Message:  text,
	}
}

// ErrorMessage 发送给出错连接的错误信封。房间和其他参与者不受影响。
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage 组装 error 载荷。
func NewErrorMessage(text string) ErrorMessage {
	return ErrorMessage{Type: KindError, Message: text}
}
