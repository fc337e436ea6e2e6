package domain

import (
	"sync"
	"time"
)

const (
	// MaxParticipants 每个房间最多容纳的参与者数量（双人画板）
	MaxParticipants = 2

	// DefaultUsername 用户名为空时使用的占位显示名
	DefaultUsername = "Anonymous"
)

// Participant 表示房间内的一个参与者。
// ID 是槽位号 (1 或 2)，在加入时一次性分配，离开前不会被重新编号。
type Participant struct {
	ID       int    `json:"id"`
	ConnID   string `json:"-"`
	Username string `json:"username"`
}

// Room 表示一个双人绘画会话。
// 字段由内部互斥锁保护：Hub 的事件循环串行化了所有写操作，
// 但 HTTP 探测接口和后台清扫任务会并发读取。
type Room struct {
	Code      string
	CreatedAt time.Time

	mu           sync.Mutex
	participants []Participant
	canvasData   string // 序列化后的画布快照 (data-URL)，空串表示空白画布
	lastActive   time.Time
}

// NewRoom 创建一个空房间。房间码在创建后不可变。
func NewRoom(code string) *Room {
	now := time.Now()
	return &Room{
		Code:       code,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Seat 为连接分配下一个空闲槽位并入座。
// 槽位 1 被占用时分配槽位 2，否则分配槽位 1（离开后槽位可复用）。
// 房间已满时返回 false。
func (r *Room) Seat(connID, username string) (Participant, bool) {
	if username == "" {
		username = DefaultUsername
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.participants) >= MaxParticipants {
		return Participant{}, false
	}
	slot := 1
	for _, p := range r.participants {
		if p.ID == 1 {
			slot = 2
			break
		}
	}
	p := Participant{ID: slot, ConnID: connID, Username: username}
	r.participants = append(r.participants, p)
	r.lastActive = time.Now()
	return p, true
}

// RemoveByConn 移除指定连接对应的参与者。
// 剩余参与者保留原槽位号，不做重新编号。
func (r *Room) RemoveByConn(connID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.participants {
		if p.ConnID == connID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			r.lastActive = time.Now()
			return p, true
		}
	}
	return Participant{}, false
}

// ParticipantByConn 根据连接 ID 查找参与者。
func (r *Room) ParticipantByConn(connID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if p.ConnID == connID {
			return p, true
		}
	}
	return Participant{}, false
}

// Roster 返回当前参与者列表的副本（加入顺序）。
func (r *Room) Roster() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]Participant, len(r.participants))
	copy(roster, r.participants)
	return roster
}

// Peers 返回除指定连接外的所有参与者，用于向房间内其他人广播。
func (r *Room) Peers(excludeConnID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.ConnID != excludeConnID {
			peers = append(peers, p)
		}
	}
	return peers
}

// Occupancy 返回当前参与者数量。
func (r *Room) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// IsEmpty 判断房间是否为空（可被移除）。
func (r *Room) IsEmpty() bool {
	return r.Occupancy() == 0
}

// CanvasData 返回当前权威画布快照。
func (r *Room) CanvasData() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canvasData
}

// SetCanvasData 原子地替换权威画布快照（last-write-wins）。
// 空串表示画布被清空。
func (r *Room) SetCanvasData(data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canvasData = data
	r.lastActive = time.Now()
}

// Touch 更新房间的最后活跃时间。
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()
}

// IdleFor 判断房间自最后一次活动起是否已闲置超过 d。
func (r *Room) IdleFor(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastActive) > d
}
