package domain

// SystemSender 系统广播在 playerId 字段上使用的固定发送者标识。
// 客户端据此将房间生命周期公告渲染为系统消息。
const SystemSender = "system"

// SystemUsername 系统消息的显示名。
const SystemUsername = "System"

// ChatMessage 表示房间内的一条聊天消息。服务端不保留任何历史。
type ChatMessage struct {
	SenderID int
	Username string
	Text     string
}
