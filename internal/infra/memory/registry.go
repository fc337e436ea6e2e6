package memory

import "sync"

// ConnRegistry 是 repository.ConnRegistry 的进程内实现。
type ConnRegistry struct {
	mu    sync.RWMutex
	rooms map[string]string // connID -> roomCode
}

// NewConnRegistry 创建一个空的连接注册表。
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		rooms: make(map[string]string),
	}
}

// Bind 实现连接到房间的登记。
func (r *ConnRegistry) Bind(connID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[connID] = roomCode
}

// RoomOf 实现连接归属查询。
func (r *ConnRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.rooms[connID]
	return code, ok
}

// Unbind 实现解除连接归属。
func (r *ConnRegistry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, connID)
}

// Count 实现已入座连接计数。
func (r *ConnRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
